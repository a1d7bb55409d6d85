package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"haptix/internal/platform/breaker"
	"haptix/internal/provider"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 30 * time.Second
	dialTimeout    = 10 * time.Second
)

var errNoChoices = errors.New("completion returned no choices")

// Config OpenAI 兼容端点配置。Gemini 的 OpenAI 兼容端点同样适用
type Config struct {
	// Name 注册名，默认 openai
	Name    string
	APIKey  string
	BaseURL string
	// Timeout 单次请求超时，默认 30s
	Timeout time.Duration
}

// Provider chat/completions 客户端，调用经过熔断器
type Provider struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
}

// New 创建 Provider
func New(cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = dialTimeout

	return &Provider{
		name:     cfg.Name,
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:   cfg.APIKey,
		client:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cb:       breaker.New(breaker.DefaultConfig("llm_" + cfg.Name)),
	}
}

func (p *Provider) Name() string { return p.name }

// chatRequest 线上请求体。provider 类型的 json tag 与 OpenAI 格式一致，直接复用；
// temperature 不带 omitempty，0 也要下发
type chatRequest struct {
	Model       string                    `json:"model"`
	Messages    []provider.Message        `json:"messages"`
	Temperature float64                   `json:"temperature"`
	MaxTokens   int                       `json:"max_tokens,omitempty"`
	Tools       []provider.ToolDefinition `json:"tools,omitempty"`
	ToolChoice  any                       `json:"tool_choice,omitempty"`
}

type chatChoice struct {
	Message      provider.Message `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type chatResponse struct {
	Model   string         `json:"model"`
	Choices []chatChoice   `json:"choices"`
	Usage   provider.Usage `json:"usage"`
}

// Complete 非流式补全，返回第一个 choice
func (p *Provider) Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
	})
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	var out chatResponse
	if err := breaker.Do(p.cb, func() error { return p.post(ctx, payload, &out) }); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, errNoChoices
	}

	first := out.Choices[0]
	return &provider.CompletionResponse{
		Content:      first.Message.Content,
		ToolCalls:    first.Message.ToolCalls,
		Model:        out.Model,
		FinishReason: first.FinishReason,
		Usage:        out.Usage,
	}, nil
}

func (p *Provider) post(ctx context.Context, payload []byte, out *chatResponse) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", p.name, err)
	}
	return nil
}
