package bootstrap

import (
	"haptix/internal/domain/workflow/engine"
	"haptix/internal/platform/config"
)

// EngineConfig 由应用配置生成引擎节奏配置
func EngineConfig(cfg config.EngineConfig) *engine.Config {
	ec := engine.DefaultConfig()
	ec.NodeDelay = config.Milliseconds(cfg.NodeDelayMs)
	ec.EdgeDelay = config.Milliseconds(cfg.EdgeDelayMs)
	ec.BranchDelay = config.Milliseconds(cfg.BranchDelayMs)
	if cfg.MaxNodeSteps > 0 {
		ec.MaxNodeSteps = cfg.MaxNodeSteps
	}
	return ec
}
