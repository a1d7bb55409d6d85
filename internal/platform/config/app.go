package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string         `json:"log_level" yaml:"log_level"`
	LogFormat string         `json:"log_format" yaml:"log_format"`
	Server    ServerConfig   `json:"server" yaml:"server"`
	Database  DatabaseConfig `json:"database" yaml:"database"`
	Redis     RedisConfig    `json:"redis" yaml:"redis"`
	Engine    EngineConfig   `json:"engine" yaml:"engine"`
	Session   SessionConfig  `json:"session" yaml:"session"`
	Stimulus  StimulusConfig `json:"stimulus" yaml:"stimulus"`
	Device    DeviceConfig   `json:"device" yaml:"device"`
	Speech    SpeechConfig   `json:"speech" yaml:"speech"`
	LLM       LLMConfig      `json:"llm" yaml:"llm"`
	Auth      AuthConfig     `json:"auth" yaml:"auth"`
}

type ServerConfig struct {
	Host                string   `json:"host" yaml:"host"`
	Port                int      `json:"port" yaml:"port"`
	ReadTimeoutSeconds  int      `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	AllowedOrigins      []string `json:"allowed_origins" yaml:"allowed_origins"`
	MetricsEnabled      bool     `json:"metrics_enabled" yaml:"metrics_enabled"`
}

type DatabaseConfig struct {
	URL                    string `json:"url" yaml:"url"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds"`
}

type RedisConfig struct {
	URL string `json:"url" yaml:"url"`
}

// EngineConfig 预览执行的节奏（毫秒）与步数上限
type EngineConfig struct {
	NodeDelayMs   int `json:"node_delay_ms" yaml:"node_delay_ms"`
	EdgeDelayMs   int `json:"edge_delay_ms" yaml:"edge_delay_ms"`
	BranchDelayMs int `json:"branch_delay_ms" yaml:"branch_delay_ms"`
	MaxNodeSteps  int `json:"max_node_steps" yaml:"max_node_steps"`
}

type SessionConfig struct {
	TTLSeconds int    `json:"ttl_seconds" yaml:"ttl_seconds"`
	KeyPrefix  string `json:"key_prefix" yaml:"key_prefix"`
}

// StimulusConfig 刺激后端。BackendURL 为空时由本进程直接驱动设备
type StimulusConfig struct {
	BackendURL      string  `json:"backend_url" yaml:"backend_url"`
	TimeoutSeconds  int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	BreakerFailures int     `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerRatio    float64 `json:"breaker_ratio" yaml:"breaker_ratio"`
	BreakerOpenSecs int     `json:"breaker_open_seconds" yaml:"breaker_open_seconds"`
}

// DeviceConfig Pavlok 设备 API
type DeviceConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	Token          string `json:"token" yaml:"token"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	DryRun         bool   `json:"dry_run" yaml:"dry_run"`
}

// SpeechConfig ElevenLabs 实时转写
type SpeechConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	ModelID string `json:"model_id" yaml:"model_id"`
}

// LLMConfig 提示词触发分析使用的 OpenAI 兼容端点（默认 Gemini）
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"`
	APIKey      string  `json:"api_key" yaml:"api_key"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer" yaml:"jwt_issuer"`
}

const (
	defaultLLMBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultLLMModel      = "gemini-2.5-flash-lite"
	defaultDeviceBaseURL = "https://api.pavlok.com"
	defaultSpeechBaseURL = "https://api.elevenlabs.io"
)

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8000,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 600,
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://localhost:3000",
				"http://localhost:5174",
			},
			MetricsEnabled: true,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           10,
			MaxIdleConns:           2,
			ConnMaxLifetimeSeconds: 300,
		},
		Engine: EngineConfig{
			NodeDelayMs:   500,
			EdgeDelayMs:   300,
			BranchDelayMs: 200,
			MaxNodeSteps:  100,
		},
		Session: SessionConfig{
			TTLSeconds: 4 * 3600,
			KeyPrefix:  "haptix:session:",
		},
		Stimulus: StimulusConfig{
			TimeoutSeconds:  10,
			BreakerFailures: 5,
			BreakerRatio:    0.6,
			BreakerOpenSecs: 30,
		},
		Device: DeviceConfig{
			BaseURL:        defaultDeviceBaseURL,
			TimeoutSeconds: 10,
		},
		Speech: SpeechConfig{
			BaseURL: defaultSpeechBaseURL,
			ModelID: "scribe_v2_realtime",
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			BaseURL:     defaultLLMBaseURL,
			Model:       defaultLLMModel,
			Temperature: 0,
		},
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON 或 YAML）。
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// .env 非必需，忽略错误
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyList("CORS_ALLOWED_ORIGINS", &c.Server.AllowedOrigins)
	applyBool("METRICS_ENABLED", &c.Server.MetricsEnabled)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("REDIS_URL", &c.Redis.URL)

	applyInt("ENGINE_NODE_DELAY_MS", &c.Engine.NodeDelayMs)
	applyInt("ENGINE_EDGE_DELAY_MS", &c.Engine.EdgeDelayMs)
	applyInt("ENGINE_BRANCH_DELAY_MS", &c.Engine.BranchDelayMs)
	applyInt("ENGINE_MAX_NODE_STEPS", &c.Engine.MaxNodeSteps)

	applyInt("SESSION_TTL", &c.Session.TTLSeconds)
	applyString("SESSION_KEY_PREFIX", &c.Session.KeyPrefix)

	applyString("STIMULUS_BACKEND_URL", &c.Stimulus.BackendURL)
	applyInt("STIMULUS_TIMEOUT", &c.Stimulus.TimeoutSeconds)
	applyInt("STIMULUS_BREAKER_FAILURES", &c.Stimulus.BreakerFailures)
	applyFloat64("STIMULUS_BREAKER_RATIO", &c.Stimulus.BreakerRatio)
	applyInt("STIMULUS_BREAKER_OPEN", &c.Stimulus.BreakerOpenSecs)

	applyString("PAVLOK_BASE_URL", &c.Device.BaseURL)
	applyString("PAVLOK_TOKEN", &c.Device.Token)
	applyInt("PAVLOK_TIMEOUT", &c.Device.TimeoutSeconds)
	applyBool("PAVLOK_DRY_RUN", &c.Device.DryRun)

	applyString("ELEVENLABS_API_KEY", &c.Speech.APIKey)
	applyString("ELEVENLABS_BASE_URL", &c.Speech.BaseURL)
	applyString("ELEVENLABS_MODEL_ID", &c.Speech.ModelID)

	applyString("LLM_PROVIDER", &c.LLM.Provider)
	applyString("GEMINI_API_KEY", &c.LLM.APIKey)
	applyString("LLM_API_KEY", &c.LLM.APIKey)
	applyString("LLM_BASE_URL", &c.LLM.BaseURL)
	applyString("LLM_MODEL", &c.LLM.Model)
	applyFloat64("LLM_TEMPERATURE", &c.LLM.Temperature)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)
}

func (c *AppConfig) normalize() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.Device.BaseURL == "" {
		c.Device.BaseURL = defaultDeviceBaseURL
	}
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Stimulus.BackendURL = strings.TrimRight(c.Stimulus.BackendURL, "/")
	c.LLM.BaseURL = strings.TrimRight(c.LLM.BaseURL, "/")
	if c.Device.Token == "" {
		// 没有设备凭证时只记录不下发
		c.Device.DryRun = true
	}
}

func (c *AppConfig) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be within 1-65535, got %d", c.Server.Port)
	}
	if c.Engine.MaxNodeSteps <= 0 {
		return fmt.Errorf("ENGINE_MAX_NODE_STEPS must be positive")
	}
	if c.Engine.NodeDelayMs < 0 || c.Engine.EdgeDelayMs < 0 || c.Engine.BranchDelayMs < 0 {
		return fmt.Errorf("engine delays must not be negative")
	}
	if c.Session.TTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Stimulus.BreakerRatio <= 0 || c.Stimulus.BreakerRatio > 1 {
		return fmt.Errorf("STIMULUS_BREAKER_RATIO must be within (0, 1]")
	}
	return nil
}

// Milliseconds 将毫秒配置转换为 time.Duration
func Milliseconds(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds 将秒配置转换为 time.Duration
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}

func applyBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}

func applyList(key string, target *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*target = out
}
