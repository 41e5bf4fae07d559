package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/tracemake/internal/aggregate"
	"github.com/ppiankov/tracemake/internal/watch"
)

var (
	aggregateOutput   string
	aggregateWatch    bool
	aggregateDebounce time.Duration
	aggregateMaxWait  time.Duration
)

var errOutputRequired = errors.New("output file is required (-o)")

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().StringVarP(&aggregateOutput, "output", "o", "", "Output trace JSON file (required)")
	aggregateCmd.Flags().BoolVarP(&aggregateWatch, "watch", "w", false, "Re-aggregate whenever the trace log changes")
	aggregateCmd.Flags().DurationVar(&aggregateDebounce, "debounce", 0, "Quiet period before re-aggregating in --watch mode (default from config)")
	aggregateCmd.Flags().DurationVar(&aggregateMaxWait, "max-wait", 0, "Re-aggregate at least this often while writes keep arriving (default from config)")
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [input] -o <output>",
	Short: "Convert a trace log into a Chrome trace-event document",
	Long: "Reads the trace log (positional argument, else $TRACE_FILE, else .make.trace),\n" +
		"pairs start and stop records into spans, assigns each concurrently running\n" +
		"command its own lane and writes a trace-event JSON file.",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	if aggregateOutput == "" {
		_ = cmd.Usage()
		return errOutputRequired
	}

	var input string
	if len(args) == 1 {
		input = args[0]
	}
	opts := aggregate.Options{
		Input:  cfg.ResolveTraceFile(input),
		Output: aggregateOutput,
		Logger: logger,
	}

	pass := func() error {
		result, err := aggregate.Run(opts)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprint(cmd.OutOrStdout(), aggregate.FormatSummary(result))
		return nil
	}

	if !aggregateWatch {
		return pass()
	}

	if err := pass(); err != nil {
		logger.Warn("initial aggregation failed, waiting for changes", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	debounce := aggregateDebounce
	if debounce == 0 {
		debounce = cfg.WatchDebounce
	}
	maxWait := aggregateMaxWait
	if maxWait == 0 {
		maxWait = cfg.WatchMaxWait
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", opts.Input)
	return watch.New(opts.Input, debounce, pass, logger).WithMaxWait(maxWait).Run(ctx)
}
