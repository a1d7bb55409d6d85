package stimulus

import (
	"time"

	types "haptix/internal/domain/workflow/model"
)

// Pulse 一组相同强度的刺激：连续下发 Repeats 次，每次之后停顿 Interval，
// 整组结束后再停顿 Pause
type Pulse struct {
	Mode     types.ActionType
	Value    int
	Repeats  int
	Interval time.Duration
	Pause    time.Duration
}

// Preset 根据模式生成脉冲序列
type Preset func(mode types.ActionType) []Pulse

const (
	defaultValue = 50
	presetLoops  = 3
)

var presets = map[types.StimulusType]Preset{
	types.StimulusTypeSingle: func(mode types.ActionType) []Pulse {
		return []Pulse{{Mode: mode, Value: defaultValue, Repeats: 1}}
	},
	types.StimulusTypeDouble: func(mode types.ActionType) []Pulse {
		return []Pulse{{Mode: mode, Value: defaultValue, Repeats: 2, Interval: 250 * time.Millisecond}}
	},
	types.StimulusTypeTriple: func(mode types.ActionType) []Pulse {
		return []Pulse{{Mode: mode, Value: defaultValue, Repeats: 3, Interval: 250 * time.Millisecond}}
	},
	types.StimulusTypeLong: func(mode types.ActionType) []Pulse {
		return []Pulse{{Mode: mode, Value: 80, Repeats: 5}}
	},
	types.StimulusTypeHeartbeat: heartbeat,
	types.StimulusTypeBreathing: breathing,
}

// heartbeat 轻重两拍后停 1.5s。固定使用振动
func heartbeat(types.ActionType) []Pulse {
	out := make([]Pulse, 0, presetLoops*2)
	for i := 0; i < presetLoops; i++ {
		out = append(out,
			Pulse{Mode: types.ActionTypeVibe, Value: 10, Repeats: 1},
			Pulse{Mode: types.ActionTypeVibe, Value: 25, Repeats: 2, Pause: 1500 * time.Millisecond},
		)
	}
	return out
}

// breathing 引导呼吸节奏，呼气段逐轮加长。固定使用振动
func breathing(types.ActionType) []Pulse {
	out := []Pulse{{Mode: types.ActionTypeVibe, Value: 30, Repeats: 3, Interval: 250 * time.Millisecond, Pause: time.Second}}
	for i := 0; i < presetLoops; i++ {
		out = append(out,
			Pulse{Mode: types.ActionTypeVibe, Value: 50, Repeats: 5, Pause: time.Second},
			Pulse{Mode: types.ActionTypeVibe, Value: 30, Repeats: min(7, 5+i), Pause: time.Second},
		)
	}
	return out
}

// LookupPreset 查找预设
func LookupPreset(t types.StimulusType) (Preset, bool) {
	p, ok := presets[t]
	return p, ok
}
