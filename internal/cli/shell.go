package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tracemake/internal/shell"
	"github.com/ppiankov/tracemake/internal/tracelog"
)

func init() {
	rootCmd.AddCommand(shellCmd)
}

var shellCmd = &cobra.Command{
	Use:   "shell <shell-args...>",
	Short: "Run a recipe through /bin/sh and record its start and stop",
	Long: "Drop-in replacement for the build's recipe shell. Arguments are passed to\n" +
		"the real shell untouched (make invokes it as `shell -c '<recipe>'`).\n" +
		"Begin and End records are appended to $TRACE_FILE (default .make.trace).\n" +
		"The exit code mirrors the recipe's.",
	DisableFlagParsing: true,
	SilenceUsage:       true,
	RunE:               runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	log, err := tracelog.Open(cfg.ResolveTraceFile(""))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := &shell.Runner{
		Log:    log,
		Shell:  cfg.ResolveShell(),
		Stdin:  os.Stdin,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		Logger: logger,
	}
	code, err := r.Run(ctx, args)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "tracemake shell: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	if code != 0 {
		exit(code)
	}
	return nil
}
