package bootstrap

import (
	// 节点执行器注册
	_ "haptix/internal/domain/workflow/node/action"
	_ "haptix/internal/domain/workflow/node/conditional"
	_ "haptix/internal/domain/workflow/node/trigger"
)
