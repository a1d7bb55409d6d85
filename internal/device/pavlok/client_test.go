package pavlok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sendPath, r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", Token: "tok"})
	require.NoError(t, c.Send(context.Background(), "zap", 40))

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "zap", got.Stimulus.StimulusType)
	assert.Equal(t, 40, got.Stimulus.StimulusValue)
}

func TestClient_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(Config{BaseURL: srv.URL}).Send(context.Background(), "beep", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_DryRun(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", DryRun: true})
	assert.NoError(t, c.Send(context.Background(), "vibe", 50))
}
