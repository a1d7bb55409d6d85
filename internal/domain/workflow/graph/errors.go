package graph

import "errors"

var (
	// ErrNodeNotFound 节点不存在
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound 边不存在
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrUnknownNodeType 不支持的节点类型
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrBranchHandleRequired 条件节点的出边必须指定 true/false 分支
	ErrBranchHandleRequired = errors.New("conditional edges require a \"true\" or \"false\" source handle")

	// ErrBranchTaken 条件节点的该分支已经连接
	ErrBranchTaken = errors.New("conditional branch already connected")

	// ErrImmutableField 字段不允许修改（isStart）
	ErrImmutableField = errors.New("field is immutable")

	// ErrUnknownField 该节点类型没有此字段
	ErrUnknownField = errors.New("unknown field for node type")

	// ErrInvalidValue 字段值不合法
	ErrInvalidValue = errors.New("invalid field value")

	// ErrStartNodeMissing 图中没有起始触发器
	ErrStartNodeMissing = errors.New("start trigger node is missing")

	// ErrMultipleStartNodes 图中存在多个起始触发器
	ErrMultipleStartNodes = errors.New("graph must contain exactly one start trigger")

	// ErrDuplicateNodeID 节点 ID 重复
	ErrDuplicateNodeID = errors.New("duplicate node id")
)
