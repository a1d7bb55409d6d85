package stimulus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
	applog "haptix/internal/platform/log"
)

// Device 单次刺激的下发端（pavlok.Client 实现）
type Device interface {
	Send(ctx context.Context, stimulusType string, value int) error
}

// Recorder 刺激计数钩子
type Recorder interface {
	StimulusSent(mode string, err error)
}

// Player 把刺激请求展开成脉冲序列并逐次下发到设备。
// 同时实现 port.StimulusSender 与 port.KeywordChecker，供本进程直接驱动设备
type Player struct {
	device   Device
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

// PlayerOption Player 选项
type PlayerOption func(*Player)

// WithRecorder 设置计数钩子
func WithRecorder(r Recorder) PlayerOption {
	return func(p *Player) { p.recorder = r }
}

// WithSleep 替换等待函数（测试用）
func WithSleep(fn func(ctx context.Context, d time.Duration) error) PlayerOption {
	return func(p *Player) { p.sleep = fn }
}

// NewPlayer 创建 Player
func NewPlayer(device Device, opts ...PlayerOption) *Player {
	p := &Player{
		device: device,
		sleep:  sleepCtx,
		logger: applog.With("component", "stimulus_player"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play 播放一次刺激：已知预设按序列下发，否则直接下发
func (p *Player) Play(ctx context.Context, s port.Stimulus) error {
	if preset, ok := LookupPreset(s.Type); ok {
		p.logger.Info("[Player] playing preset", "mode", s.Mode, "type", s.Type)
		return p.playPulses(ctx, preset(s.Mode))
	}

	value, repeats, interval := defaultValue, 1, 0.0
	if s.Value != nil {
		value = *s.Value
	}
	if s.Repeats != nil {
		repeats = *s.Repeats
	}
	if s.Interval != nil {
		interval = *s.Interval
	}
	p.logger.Info("[Player] direct stimulate", "mode", s.Mode, "value", value, "repeats", repeats, "interval", interval)
	return p.Stimulate(ctx, s.Mode, value, repeats, time.Duration(interval*float64(time.Second)))
}

// Stimulate 连续下发 repeats 次，每次之后等待 interval
func (p *Player) Stimulate(ctx context.Context, mode types.ActionType, value, repeats int, interval time.Duration) error {
	return p.playPulses(ctx, []Pulse{{Mode: mode, Value: value, Repeats: repeats, Interval: interval}})
}

func (p *Player) playPulses(ctx context.Context, pulses []Pulse) error {
	for _, pulse := range pulses {
		for i := 0; i < pulse.Repeats; i++ {
			err := p.device.Send(ctx, string(pulse.Mode), pulse.Value)
			if p.recorder != nil {
				p.recorder.StimulusSent(string(pulse.Mode), err)
			}
			if err != nil {
				return fmt.Errorf("send %s(%d): %w", pulse.Mode, pulse.Value, err)
			}
			if err := p.sleep(ctx, pulse.Interval); err != nil {
				return err
			}
		}
		if err := p.sleep(ctx, pulse.Pause); err != nil {
			return err
		}
	}
	return nil
}

// Trigger port.StimulusSender
func (p *Player) Trigger(ctx context.Context, s port.Stimulus) error {
	return p.Play(ctx, s)
}

// CheckText port.KeywordChecker：不区分大小写的包含判断，命中时播放对应预设
func (p *Player) CheckText(ctx context.Context, req port.CheckTextRequest) (bool, error) {
	exists := Contains(req.Text, req.SearchString)
	if !exists {
		return false, nil
	}
	if preset, ok := LookupPreset(req.Type); ok {
		if err := p.playPulses(ctx, preset(req.Mode)); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Contains 不区分大小写的子串判断
func Contains(text, search string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(search))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
