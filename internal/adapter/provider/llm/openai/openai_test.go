package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"haptix/internal/provider"
)

func TestProvider_CompleteWithToolCalls(t *testing.T) {
	var got struct {
		Temperature *float64                  `json:"temperature"`
		Tools       []provider.ToolDefinition `json:"tools"`
		ToolChoice  any                       `json:"tool_choice"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gemini-2.5-flash-lite",
			"choices": [{
				"finish_reason": "tool_calls",
				"message": {"role": "assistant", "content": null, "tool_calls": [{
					"id": "call_1", "type": "function",
					"function": {"name": "trigger_stimulus", "arguments": "{\"mode\":\"zap\",\"type\":\"single\"}"}
				}]}
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`))
	}))
	defer srv.Close()

	p := New(Config{Name: "gemini", APIKey: "k", BaseURL: srv.URL + "/"})
	if p.Name() != "gemini" {
		t.Fatalf("unexpected name %q", p.Name())
	}

	resp, err := p.Complete(context.Background(), &provider.CompletionRequest{
		Model:    "gemini-2.5-flash-lite",
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
		Tools: []provider.ToolDefinition{{
			Type:     "function",
			Function: provider.ToolFunction{Name: "trigger_stimulus", Parameters: map[string]any{"type": "object"}},
		}},
		ToolChoice: "auto",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Usage.TotalTokens != 20 || resp.FinishReason != "tool_calls" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "trigger_stimulus" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Fatalf("temperature 0 must be sent explicitly, got %v", got.Temperature)
	}
	if len(got.Tools) != 1 || got.ToolChoice != "auto" {
		t.Fatalf("tools not forwarded: %+v", got)
	}
	t.Logf("✅ tool call: %s(%s)", resp.ToolCalls[0].Function.Name, resp.ToolCalls[0].Function.Arguments)
}

func TestProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Complete(context.Background(), &provider.CompletionRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
}
