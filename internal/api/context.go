package api

import (
	"context"
	"fmt"
)

// Scope 调用方身份（注入到 context）
type Scope struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles,omitempty"`
}

type scopeContextKey struct{}

// WithScope 注入 Scope 到 context
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFrom 从 context 提取 Scope
func ScopeFrom(ctx context.Context) (*Scope, error) {
	scope, ok := ctx.Value(scopeContextKey{}).(*Scope)
	if !ok || scope == nil {
		return nil, fmt.Errorf("scope not found in context")
	}
	return scope, nil
}

// subjectFrom 取调用方标识，未鉴权时为空
func subjectFrom(ctx context.Context) string {
	if scope, err := ScopeFrom(ctx); err == nil {
		return scope.Subject
	}
	return ""
}
