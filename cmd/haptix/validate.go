package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"haptix/internal/app/workflow"
	"haptix/internal/domain/workflow/graph"
)

// errInvalid 工作流不可执行，具体原因已输出
var errInvalid = errors.New("workflow is not executable")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a workflow can be executed",
		Long:  `Checks trigger fields and that an action node is reachable from the start trigger.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := workflow.LoadFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			issues := graph.Validate(cfg.Nodes, cfg.Edges)
			if len(issues) == 0 {
				fmt.Fprintf(out, "Workflow is valid! ✅ (%d nodes, %d edges)\n", len(cfg.Nodes), len(cfg.Edges))
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "❌ [%s] %s\n", issue.Code, issue)
			}
			return errInvalid
		},
	}
}
