package postgres

import (
	"strings"
	"testing"

	"haptix/internal/domain/workflow/port"
)

func TestBuildListQuery(t *testing.T) {
	matched := true
	tests := []struct {
		name      string
		params    port.ListTriggersParams
		wantWhere string
		wantArgs  int
		wantLimit int
	}{
		{"no filters", port.ListTriggersParams{}, "", 1, 100},
		{"session", port.ListTriggersParams{SessionID: "s1", Limit: 10}, "WHERE session_id = $1", 2, 10},
		{"session and matched", port.ListTriggersParams{SessionID: "s1", Matched: &matched}, "WHERE session_id = $1 AND matched = $2", 3, 100},
		{"limit clamp", port.ListTriggersParams{Limit: 10000}, "", 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.params)
			if tt.wantWhere != "" && !strings.Contains(query, tt.wantWhere) {
				t.Errorf("query %q missing %q", query, tt.wantWhere)
			}
			if tt.wantWhere == "" && strings.Contains(query, "WHERE") {
				t.Errorf("unexpected WHERE in %q", query)
			}
			if len(args) != tt.wantArgs {
				t.Fatalf("expected %d args, got %d", tt.wantArgs, len(args))
			}
			if args[len(args)-1] != tt.wantLimit {
				t.Errorf("expected limit %d, got %v", tt.wantLimit, args[len(args)-1])
			}
		})
	}
}
