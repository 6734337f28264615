package cli

import (
	"github.com/spf13/cobra"

	"gsrwatch/internal/app"
)

var (
	inspectRange string
	inspectForce bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Fetch one payload and report its shape, row counts and tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Inspect(cmd.Context(), app.InspectOptions{Range: inspectRange, Force: inspectForce})
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectRange, "range", "", "Range whose fetch size is requested")
	inspectCmd.Flags().BoolVar(&inspectForce, "force", false, "Ask the source to bypass its cache")
}
