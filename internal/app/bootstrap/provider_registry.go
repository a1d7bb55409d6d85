package bootstrap

import (
	"haptix/internal/adapter/provider/llm/openai"
	"haptix/internal/platform/config"
	applog "haptix/internal/platform/log"
	"haptix/internal/provider"
)

// RegisterLLMProviders 注册配置的 LLM 供应商，返回提示词分析使用的那一个
func RegisterLLMProviders(reg *provider.Registry, cfg config.LLMConfig) (provider.LLMProvider, bool) {
	if cfg.APIKey == "" {
		applog.Warn("⚠️  No LLM API key set, prompt triggers will not be analysed")
		return nil, false
	}

	p := openai.New(openai.Config{
		Name:    cfg.Provider,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})
	reg.Register(p)
	applog.Infof("✅ Registered LLM provider: %s (base: %s, model: %s)", p.Name(), cfg.BaseURL, cfg.Model)
	return p, true
}
