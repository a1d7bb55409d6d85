package stimulus

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

	"haptix/internal/domain/workflow/port"
	"haptix/internal/platform/breaker"
	applog "haptix/internal/platform/log"
)

const (
	triggerPath   = "/trigger-stimulus"
	checkTextPath = "/check-text"
)

// Client 刺激后端 HTTP 客户端，实现 port.StimulusSender 与 port.KeywordChecker。
// 不重试；2xx 视为成功
type Client struct {
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	recorder Recorder
	logger   *slog.Logger
}

// ClientOption 客户端选项
type ClientOption func(*Client)

// WithClientHTTP 替换底层 http.Client
func WithClientHTTP(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithClientBreaker 使用给定熔断器
func WithClientBreaker(cb *gobreaker.CircuitBreaker) ClientOption {
	return func(c *Client) { c.breaker = cb }
}

// WithClientRecorder 设置计数钩子
func WithClientRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

// NewClient 创建后端客户端
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  applog.With("component", "stimulus_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = breaker.New(breaker.DefaultConfig("stimulus_backend"))
	}
	return c
}

// Trigger POST /trigger-stimulus
func (c *Client) Trigger(ctx context.Context, s port.Stimulus) error {
	err := c.post(ctx, triggerPath, s, nil)
	if c.recorder != nil {
		c.recorder.StimulusSent(string(s.Mode), err)
	}
	if err != nil {
		c.logger.Warn("[StimulusClient] trigger failed", "mode", s.Mode, "type", s.Type, "error", err)
		return err
	}
	c.logger.Debug("[StimulusClient] trigger sent", "mode", s.Mode, "type", s.Type)
	return nil
}

// CheckText POST /check-text
func (c *Client) CheckText(ctx context.Context, req port.CheckTextRequest) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.post(ctx, checkTextPath, req, &out); err != nil {
		c.logger.Warn("[StimulusClient] check-text failed", "search", req.SearchString, "error", err)
		return false, err
	}
	return out.Exists, nil
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return breaker.Do(c.breaker, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request %s failed: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
		return nil
	})
}
