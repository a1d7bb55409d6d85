package graph

import (
	"fmt"
	"strings"

	types "haptix/internal/domain/workflow/model"
)

// IssueCode 校验问题分类
type IssueCode string

const (
	IssueMissingKeyword    IssueCode = "missing_keyword"
	IssueMissingPrompt     IssueCode = "missing_prompt"
	IssueNoStart           IssueCode = "no_start"
	IssueNoReachableAction IssueCode = "no_reachable_action"
)

// Issue 图校验发现的问题
type Issue struct {
	Code    IssueCode `json:"code"`
	NodeID  string    `json:"node_id,omitempty"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.NodeID, i.Message)
}

// CanExecute 图是否可以启动会话
func CanExecute(nodes []types.Node, edges []types.Edge) bool {
	return len(Validate(nodes, edges)) == 0
}

// Validate 返回图不可执行的全部原因；为空表示可执行
//
// 触发器字段校验总是先于可达性检查执行
func Validate(nodes []types.Node, edges []types.Edge) []Issue {
	issues := triggerIssues(nodes)
	if len(issues) > 0 {
		return issues
	}

	start, ok := types.FindStart(nodes)
	if !ok {
		return []Issue{{Code: IssueNoStart, Message: ErrStartNodeMissing.Error()}}
	}

	if !actionReachable(nodes, edges, start.ID) {
		return []Issue{{
			Code:    IssueNoReachableAction,
			NodeID:  start.ID,
			Message: "no action node is reachable from the start trigger",
		}}
	}
	return nil
}

func triggerIssues(nodes []types.Node) []Issue {
	var issues []Issue
	for _, n := range nodes {
		if n.Type != types.NodeTypeTrigger {
			continue
		}
		switch n.Data.TriggerType {
		case types.TriggerTypeKeyword:
			if strings.TrimSpace(n.Data.Keyword) == "" {
				issues = append(issues, Issue{Code: IssueMissingKeyword, NodeID: n.ID, Message: "keyword trigger has no keyword"})
			}
		case types.TriggerTypePrompt:
			if strings.TrimSpace(n.Data.Prompt) == "" {
				issues = append(issues, Issue{Code: IssueMissingPrompt, NodeID: n.ID, Message: "prompt trigger has no prompt"})
			}
		}
	}
	return issues
}

// actionReachable 从起点做 BFS，访问到任意动作节点即返回 true
func actionReachable(nodes []types.Node, edges []types.Edge, startID string) bool {
	byID := make(map[string]types.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	visited := map[string]bool{startID: true}
	queue := []string{startID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if n, ok := byID[id]; ok && n.Type == types.NodeTypeAction {
			return true
		}

		for _, e := range edges {
			if e.Source != id || visited[e.Target] {
				continue
			}
			visited[e.Target] = true
			queue = append(queue, e.Target)
		}
	}
	return false
}
