package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "haptix/internal/domain/workflow/model"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCollector_Counters(t *testing.T) {
	c := New()

	c.NodeVisited(types.NodeTypeAction)
	c.NodeVisited(types.NodeTypeAction)
	c.RunFinished(types.RunOutcomeSucceeded, 1500*time.Millisecond)
	c.StimulusSent("zap", nil)
	c.StimulusSent("zap", errors.New("down"))
	c.TriggerMatched("keyword")
	c.TranscriptReceived()

	body := scrape(t, c)
	assert.Contains(t, body, `haptix_node_visits_total{node_type="action"} 2`)
	assert.Contains(t, body, `haptix_runs_total{outcome="succeeded"} 1`)
	assert.Contains(t, body, `haptix_stimulus_requests_total{mode="zap",result="error"} 1`)
	assert.Contains(t, body, `haptix_trigger_matches_total{kind="keyword"} 1`)
	assert.Contains(t, body, "haptix_transcripts_total 1")
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.TranscriptReceived()

	assert.Contains(t, scrape(t, b), "haptix_transcripts_total 0")
}
