package stimulus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "haptix/internal/domain/workflow/model"
	"haptix/internal/domain/workflow/port"
)

type sent struct {
	mode  string
	value int
}

type fakeDevice struct {
	mu    sync.Mutex
	calls []sent
	err   error
}

func (d *fakeDevice) Send(_ context.Context, mode string, value int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, sent{mode, value})
	return d.err
}

func newTestPlayer(d Device) (*Player, *[]time.Duration) {
	var waits []time.Duration
	p := NewPlayer(d, WithSleep(func(ctx context.Context, dur time.Duration) error {
		if dur > 0 {
			waits = append(waits, dur)
		}
		return ctx.Err()
	}))
	return p, &waits
}

func TestPlayer_Presets(t *testing.T) {
	tests := []struct {
		typ       types.StimulusType
		mode      types.ActionType
		wantCalls int
		firstMode string
	}{
		{types.StimulusTypeSingle, types.ActionTypeZap, 1, "zap"},
		{types.StimulusTypeDouble, types.ActionTypeBeep, 2, "beep"},
		{types.StimulusTypeTriple, types.ActionTypeVibe, 3, "vibe"},
		{types.StimulusTypeLong, types.ActionTypeZap, 5, "zap"},
		// 3 * (1 + 2)
		{types.StimulusTypeHeartbeat, types.ActionTypeZap, 9, "vibe"},
		// 3 + (5+5) + (5+6) + (5+7)
		{types.StimulusTypeBreathing, types.ActionTypeZap, 36, "vibe"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			d := &fakeDevice{}
			p, _ := newTestPlayer(d)
			require.NoError(t, p.Play(context.Background(), port.Stimulus{Mode: tt.mode, Type: tt.typ}))
			assert.Len(t, d.calls, tt.wantCalls)
			assert.Equal(t, tt.firstMode, d.calls[0].mode)
		})
	}
}

func TestPlayer_HeartbeatPauses(t *testing.T) {
	p, waits := newTestPlayer(&fakeDevice{})
	require.NoError(t, p.Play(context.Background(), port.Stimulus{Mode: types.ActionTypeVibe, Type: types.StimulusTypeHeartbeat}))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond, 1500 * time.Millisecond}, *waits)
}

func TestPlayer_DirectFallback(t *testing.T) {
	d := &fakeDevice{}
	p, waits := newTestPlayer(d)
	value, repeats, interval := 70, 2, 0.5
	err := p.Play(context.Background(), port.Stimulus{
		Mode: types.ActionTypeBeep, Type: "custom",
		Value: &value, Repeats: &repeats, Interval: &interval,
	})
	require.NoError(t, err)
	assert.Equal(t, []sent{{"beep", 70}, {"beep", 70}}, d.calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, *waits)
}

func TestPlayer_StopsOnDeviceError(t *testing.T) {
	d := &fakeDevice{err: errors.New("offline")}
	p, _ := newTestPlayer(d)
	err := p.Play(context.Background(), port.Stimulus{Mode: types.ActionTypeZap, Type: types.StimulusTypeTriple})
	require.Error(t, err)
	assert.Len(t, d.calls, 1)
}

func TestPlayer_CheckText(t *testing.T) {
	d := &fakeDevice{}
	p, _ := newTestPlayer(d)

	ok, err := p.CheckText(context.Background(), port.CheckTextRequest{Text: "I feel STRESSED today", SearchString: "stressed", Mode: types.ActionTypeZap, Type: types.StimulusTypeSingle})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, d.calls, 1)

	ok, err = p.CheckText(context.Background(), port.CheckTextRequest{Text: "calm", SearchString: "stressed", Mode: types.ActionTypeZap, Type: types.StimulusTypeSingle})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, d.calls, 1)
}

func TestClient_TriggerAndCheckText(t *testing.T) {
	var gotStimulus port.Stimulus
	var gotCheck map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case triggerPath:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotStimulus))
			_ = json.NewEncoder(w).Encode("Ok")
		case checkTextPath:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotCheck))
			_ = json.NewEncoder(w).Encode(map[string]bool{"exists": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	require.NoError(t, c.Trigger(context.Background(), port.Stimulus{Mode: types.ActionTypeZap, Type: types.StimulusTypeDouble}))
	assert.Equal(t, types.ActionTypeZap, gotStimulus.Mode)
	assert.Equal(t, types.StimulusTypeDouble, gotStimulus.Type)

	exists, err := c.CheckText(context.Background(), port.CheckTextRequest{Text: "hello", SearchString: "he", Mode: types.ActionTypeVibe, Type: types.StimulusTypeSingle})
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "he", gotCheck["search_string"])
}

func TestClient_Non2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).Trigger(context.Background(), port.Stimulus{Mode: types.ActionTypeVibe})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
