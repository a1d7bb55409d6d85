package bootstrap

import (
	"haptix/internal/device/pavlok"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/platform/breaker"
	"haptix/internal/platform/config"
	applog "haptix/internal/platform/log"
	"haptix/internal/platform/metrics"
	"haptix/internal/stimulus"
)

// StimulusStack 刺激相关组件
type StimulusStack struct {
	// Player 直接驱动设备，服务后端接口（/trigger-stimulus、/check-text）
	Player *stimulus.Player
	// Sender / Keywords 供引擎与会话使用：配置了后端地址时走 HTTP，否则直接用 Player
	Sender   port.StimulusSender
	Keywords port.KeywordChecker
}

// BuildStimulus 按配置组装刺激组件。m 可为空
func BuildStimulus(cfg *config.AppConfig, m *metrics.Collector) *StimulusStack {
	device := pavlok.New(pavlok.Config{
		BaseURL: cfg.Device.BaseURL,
		Token:   cfg.Device.Token,
		Timeout: config.Seconds(cfg.Device.TimeoutSeconds),
		DryRun:  cfg.Device.DryRun,
	}, pavlok.WithBreaker(breaker.New(breakerConfig("pavlok", cfg.Stimulus))))

	var playerOpts []stimulus.PlayerOption
	if m != nil {
		playerOpts = append(playerOpts, stimulus.WithRecorder(m))
	}
	player := stimulus.NewPlayer(device, playerOpts...)

	stack := &StimulusStack{Player: player, Sender: player, Keywords: player}
	if cfg.Stimulus.BackendURL != "" {
		clientOpts := []stimulus.ClientOption{
			stimulus.WithClientBreaker(breaker.New(breakerConfig("stimulus_backend", cfg.Stimulus))),
		}
		if m != nil {
			clientOpts = append(clientOpts, stimulus.WithClientRecorder(m))
		}
		client := stimulus.NewClient(cfg.Stimulus.BackendURL, config.Seconds(cfg.Stimulus.TimeoutSeconds), clientOpts...)
		stack.Sender = client
		stack.Keywords = client
		applog.Infof("✅ Stimulus backend: %s", cfg.Stimulus.BackendURL)
	} else {
		applog.Info("✅ Stimulus backend: in-process player", "dry_run", cfg.Device.DryRun)
	}
	return stack
}

func breakerConfig(name string, cfg config.StimulusConfig) breaker.Config {
	bc := breaker.DefaultConfig(name)
	if cfg.BreakerFailures > 0 {
		bc.MinRequests = uint32(cfg.BreakerFailures)
	}
	if cfg.BreakerRatio > 0 {
		bc.FailureRatio = cfg.BreakerRatio
	}
	if cfg.BreakerOpenSecs > 0 {
		bc.Timeout = config.Seconds(cfg.BreakerOpenSecs)
	}
	return bc
}
