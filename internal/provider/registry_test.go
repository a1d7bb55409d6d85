package provider

import (
	"context"
	"testing"
)

type namedProvider string

func (n namedProvider) Name() string { return string(n) }
func (n namedProvider) Complete(context.Context, *CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(namedProvider("openai"))
	r.Register(namedProvider("gemini"))

	if _, err := r.Get("gemini"); err != nil {
		t.Fatalf("expected gemini: %v", err)
	}
	if _, err := r.Get("claude"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "gemini" || names[1] != "openai" {
		t.Fatalf("unexpected names %v", names)
	}
}
