package cli

import (
	"github.com/spf13/cobra"
)

var (
	runRange     string
	runOutputDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh periodically, re-render charts and evaluate alerts (SIGHUP forces a refresh)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if runRange != "" {
			a.Config.View.Range = runRange
		}
		if runOutputDir != "" {
			a.Config.View.OutputDir = runOutputDir
		}
		return a.Run(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&runRange, "range", "", "Range to display: 1M, 3M, 6M, 1Y or MAX (defaults to config)")
	runCmd.Flags().StringVar(&runOutputDir, "out", "", "Directory receiving <metric>.png after each load")
}
