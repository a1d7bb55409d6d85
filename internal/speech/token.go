package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	applog "haptix/internal/platform/log"
)

// ErrNotConfigured 未配置 ElevenLabs API key
var ErrNotConfigured = errors.New("speech provider api key not configured")

const tokenPathPrefix = "/v1/single-use-token/"

// TokenType 一次性令牌的用途
const TokenTypeRealtimeScribe = "realtime_scribe"

// Token 浏览器端实时转写使用的一次性令牌
type Token struct {
	Token string `json:"token"`
}

// Config ElevenLabs 配置
type Config struct {
	APIKey  string
	BaseURL string
	ModelID string
	Timeout time.Duration
}

// TokenIssuer 向 ElevenLabs 申请一次性令牌，API key 不下发到浏览器
type TokenIssuer struct {
	config Config
	http   *http.Client
	logger *slog.Logger
}

// NewTokenIssuer 创建令牌签发器
func NewTokenIssuer(cfg Config) *TokenIssuer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TokenIssuer{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: applog.With("component", "speech_token"),
	}
}

// ModelID 浏览器连接实时转写时使用的模型
func (i *TokenIssuer) ModelID() string {
	return i.config.ModelID
}

// Issue 申请一个 realtime_scribe 令牌
func (i *TokenIssuer) Issue(ctx context.Context) (*Token, error) {
	if i.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.config.BaseURL+tokenPathPrefix+TokenTypeRealtimeScribe, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", i.config.APIKey)

	resp, err := i.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.Token == "" {
		return nil, errors.New("token endpoint returned empty token")
	}
	i.logger.Debug("[SpeechToken] single-use token issued")
	return &tok, nil
}
