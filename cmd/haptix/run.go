package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"haptix/internal/app/bootstrap"
	"haptix/internal/app/workflow"
	"haptix/internal/device/pavlok"
	"haptix/internal/domain/workflow/engine"
	"haptix/internal/domain/workflow/event"
	"haptix/internal/domain/workflow/port"
	"haptix/internal/platform/config"
	"haptix/internal/stimulus"
)

type runOptions struct {
	backend  string
	dryRun   bool
	fast     bool
	maxSteps int
	params   []string
	timeout  time.Duration
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Preview-run a workflow",
		Long: `Walks the workflow from its start trigger, sending each action to the stimulus backend.
Without --backend the device is driven in-process (dry-run unless PAVLOK_TOKEN is set).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.backend, "backend", "", "stimulus backend base URL (e.g. http://localhost:8000)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "log stimuli instead of sending them to the device")
	flags.BoolVar(&opts.fast, "fast", false, "skip the node and edge highlight delays")
	flags.IntVar(&opts.maxSteps, "max-steps", 0, "override the node step limit")
	flags.StringArrayVarP(&opts.params, "param", "p", nil, "extra trigger parameter key=value (repeatable)")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "abort the run after this long")
	return cmd
}

func runWorkflow(ctx context.Context, out io.Writer, path string, opts runOptions) error {
	cfg, err := workflow.LoadFile(path)
	if err != nil {
		return err
	}
	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}

	appCfg, err := config.Load()
	if err != nil {
		return err
	}

	engCfg := bootstrap.EngineConfig(appCfg.Engine)
	if opts.fast {
		engCfg.NodeDelay, engCfg.EdgeDelay, engCfg.BranchDelay = 0, 0, 0
	}
	if opts.maxSteps > 0 {
		engCfg.MaxNodeSteps = opts.maxSteps
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var runOpts []engine.RunOption
	if len(params) > 0 {
		runOpts = append(runOpts, engine.WithTriggerData(params))
	}

	runner := workflow.NewWorkflowRunner(engCfg, newSender(appCfg, opts))
	res, err := runner.RunSync(ctx, cfg, func(ev event.Event) { printEvent(out, ev) }, runOpts...)
	if res != nil {
		fmt.Fprintf(out, "%s: %d steps, %d nodes, %d action failures, %dms\n",
			res.Outcome, res.Steps, len(res.ExecutedNodes), res.ActionFailures, res.ElapsedMs)
	}
	return err
}

func newSender(cfg *config.AppConfig, opts runOptions) port.StimulusSender {
	if opts.backend != "" {
		return stimulus.NewClient(opts.backend, config.Seconds(cfg.Stimulus.TimeoutSeconds))
	}
	return stimulus.NewPlayer(pavlok.New(pavlok.Config{
		BaseURL: cfg.Device.BaseURL,
		Token:   cfg.Device.Token,
		Timeout: config.Seconds(cfg.Device.TimeoutSeconds),
		DryRun:  opts.dryRun || cfg.Device.DryRun,
	}))
}

func printEvent(out io.Writer, ev event.Event) {
	switch ev.Type {
	case event.EventTypeNodeEntered:
		fmt.Fprintf(out, "→ %s (%s)\n", ev.NodeID, ev.NodeType)
	case event.EventTypeBranchChosen:
		fmt.Fprintf(out, "  ⑂ %s branch via %s\n", ev.Branch, ev.EdgeID)
	case event.EventTypeActionSent:
		fmt.Fprintf(out, "  ✅ stimulus sent by %s\n", ev.NodeID)
	case event.EventTypeActionFailed:
		fmt.Fprintf(out, "  ❌ stimulus failed at %s: %s\n", ev.NodeID, ev.Error)
	}
}

// parseParams 解析 key=value，数值转为 float64
func parseParams(raw []string) (map[string]any, error) {
	params := make(map[string]any, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[key] = f
		} else {
			params[key] = value
		}
	}
	return params, nil
}
