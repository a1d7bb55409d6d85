package pavlok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"haptix/internal/platform/breaker"
	applog "haptix/internal/platform/log"
)

const sendPath = "/api/v5/stimulus/send"

// Config Pavlok API 配置
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	DryRun  bool // 只记录日志，不发请求
}

// Client Pavlok 设备客户端
type Client struct {
	config  Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker 使用给定熔断器
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// New 创建设备客户端
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pavlok.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: applog.With("component", "pavlok"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = breaker.New(breaker.DefaultConfig("pavlok"))
	}
	return c
}

type sendRequest struct {
	Stimulus stimulusBody `json:"stimulus"`
}

type stimulusBody struct {
	StimulusType  string `json:"stimulusType"`
	StimulusValue int    `json:"stimulusValue"`
}

// Send 下发一次刺激。stimulusType 为 vibe / zap / beep，value 为强度 0-100
func (c *Client) Send(ctx context.Context, stimulusType string, value int) error {
	if c.config.DryRun {
		c.logger.Info("[Pavlok] dry-run stimulus", "type", stimulusType, "value", value)
		return nil
	}

	body, err := json.Marshal(sendRequest{Stimulus: stimulusBody{StimulusType: stimulusType, StimulusValue: value}})
	if err != nil {
		return fmt.Errorf("marshal stimulus: %w", err)
	}

	return breaker.Do(c.breaker, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+sendPath, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.config.Token)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("pavlok request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("pavlok returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		c.logger.Debug("[Pavlok] stimulus sent", "type", stimulusType, "value", value)
		return nil
	})
}
