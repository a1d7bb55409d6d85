package main

import (
	"github.com/spf13/cobra"

	"haptix/internal/app/workflow"
	"haptix/internal/domain/workflow/trigger"
)

func newConfigCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config <file>",
		Short: "Print the trigger rules a workflow produces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := workflow.LoadFile(args[0])
			if err != nil {
				return err
			}
			f, err := workflow.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := workflow.EncodeValue(trigger.BuildConfig(cfg.Nodes, cfg.Edges), f)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format (json, yaml)")
	return cmd
}
