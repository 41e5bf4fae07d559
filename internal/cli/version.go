package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tracemake/internal/chrometrace"
	"github.com/ppiankov/tracemake/internal/tracelog"
)

const version = "0.3.0"

// versionInfo is what `tracemake version` prints. LogFormat lets a
// collector check that writer and aggregator agree on the log layout.
type versionInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	LogFormat   string `json:"log_format"`
	DisplayUnit string `json:"display_time_unit"`
	Go          string `json:"go"`
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and trace log format",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := json.MarshalIndent(versionInfo{
			Name:        "tracemake",
			Version:     version,
			LogFormat:   tracelog.Format,
			DisplayUnit: chrometrace.DisplayTimeUnit,
			Go:          runtime.Version(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
