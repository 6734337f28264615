package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gsrwatch/internal/app"
)

var (
	showRange string
	showLimit int
	showForce bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Fetch once and display the latest ratio, deltas and recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		opts := app.ShowOptions{
			Range: showRange,
			Limit: showLimit,
			Force: showForce,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showRange, "range", "", "Range to display: 1M, 3M, 6M, 1Y or MAX")
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Number of history rows to display (defaults to view.table_rows)")
	showCmd.Flags().BoolVar(&showForce, "force", false, "Ask the source to bypass its cache")
}
