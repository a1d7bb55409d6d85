package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	types "haptix/internal/domain/workflow/model"
)

// Format 工作流文件格式
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath 根据扩展名推断格式，默认 JSON
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat 解析命令行给出的格式名
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// LoadFile 读取工作流文件（JSON 或 YAML）
func LoadFile(path string) (*types.GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %q: %w", path, err)
	}
	cfg, err := Decode(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("parse workflow %q: %w", path, err)
	}
	return cfg, nil
}

// Decode 解析工作流。JSON 禁止未知字段
func Decode(data []byte, format Format) (*types.GraphConfig, error) {
	var cfg types.GraphConfig
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, err
		}
	}
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("workflow has no nodes")
	}
	return &cfg, nil
}

// Encode 序列化工作流
func Encode(cfg *types.GraphConfig, format Format) ([]byte, error) {
	return EncodeValue(cfg, format)
}

// EncodeValue 按格式序列化任意值（触发配置、执行结果等）
func EncodeValue(v any, format Format) ([]byte, error) {
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
