package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/tracemake/internal/config"
	"github.com/ppiankov/tracemake/internal/logging"
)

var (
	configPath string
	verbose    bool

	// cfg and logger are resolved once per invocation in PersistentPreRunE.
	cfg    *config.Config
	logger = zap.NewNop()

	// exit is swapped out by tests.
	exit = os.Exit
)

var errUsage = errors.New("a subcommand is required")

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./.tracemake.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug diagnostics to stderr")
}

var rootCmd = &cobra.Command{
	Use:   "tracemake",
	Short: "Trace parallel build jobs into a Chrome trace",
	Long: "Substitute `tracemake shell` for the build's recipe shell to record when every\n" +
		"command starts and stops, then `tracemake aggregate` the log into a trace-event\n" +
		"JSON document for chrome://tracing or Perfetto.\n\n" +
		"  make -j8 SHELL='tracemake shell'\n" +
		"  tracemake aggregate -o trace.json",
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		l, err := logging.New(level, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return errUsage
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exit(1)
	}
}
