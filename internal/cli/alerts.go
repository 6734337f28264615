package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"gsrwatch/internal/app"
)

var (
	alertMetric    string
	alertBelow     float64
	alertAbove     float64
	alertUnset     string
	alertEnable    bool
	alertDisable   bool
	alertSound     bool
	alertMute      bool
	alertClearOnly string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage threshold alerts",
}

var alertsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print saved thresholds and when each rule last fired",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AlertsShow(cmd.Context())
	},
}

var alertsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a threshold or toggle alerts",
	Example: "  gsrwatch alerts set --metric gsr --below 81 --enable\n" +
		"  gsrwatch alerts set --metric silver --unset above\n" +
		"  gsrwatch alerts set --sound",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if alertEnable && alertDisable {
			return errors.New("--enable and --disable are mutually exclusive")
		}
		if alertSound && alertMute {
			return errors.New("--sound and --mute are mutually exclusive")
		}

		base := app.AlertSetOptions{}
		if alertEnable || alertDisable {
			v := alertEnable
			base.Enabled = &v
		}
		if alertSound || alertMute {
			v := alertSound
			base.Sound = &v
		}

		var edits []app.AlertSetOptions
		if flags.Changed("below") {
			v := alertBelow
			edits = append(edits, app.AlertSetOptions{Metric: alertMetric, Direction: "below", Threshold: &v})
		}
		if flags.Changed("above") {
			v := alertAbove
			edits = append(edits, app.AlertSetOptions{Metric: alertMetric, Direction: "above", Threshold: &v})
		}
		if alertUnset != "" {
			edits = append(edits, app.AlertSetOptions{Metric: alertMetric, Direction: alertUnset})
		}
		if len(edits) > 0 && alertMetric == "" {
			return errors.New("--metric is required when changing a threshold")
		}
		if len(edits) == 0 {
			edits = append(edits, app.AlertSetOptions{})
		}
		edits[0].Enabled = base.Enabled
		edits[0].Sound = base.Sound

		for _, edit := range edits {
			if err := getApp().AlertsSet(cmd.Context(), edit); err != nil {
				return err
			}
		}
		return nil
	},
}

var alertsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove thresholds for one metric or all metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AlertsClear(cmd.Context(), alertClearOnly)
	},
}

var alertsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a sample notification without touching dedup state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AlertsTest(cmd.Context())
	},
}

func init() {
	alertsSetCmd.Flags().StringVar(&alertMetric, "metric", "", "Metric: gsr, gold or silver")
	alertsSetCmd.Flags().Float64Var(&alertBelow, "below", 0, "Alert when the metric drops below this value")
	alertsSetCmd.Flags().Float64Var(&alertAbove, "above", 0, "Alert when the metric rises above this value")
	alertsSetCmd.Flags().StringVar(&alertUnset, "unset", "", "Clear one bound: below or above")
	alertsSetCmd.Flags().BoolVar(&alertEnable, "enable", false, "Enable alert evaluation")
	alertsSetCmd.Flags().BoolVar(&alertDisable, "disable", false, "Disable alert evaluation")
	alertsSetCmd.Flags().BoolVar(&alertSound, "sound", false, "Ring the terminal bell on alerts")
	alertsSetCmd.Flags().BoolVar(&alertMute, "mute", false, "Do not ring the terminal bell")

	alertsClearCmd.Flags().StringVar(&alertClearOnly, "metric", "", "Only clear this metric")

	alertsCmd.AddCommand(alertsShowCmd, alertsSetCmd, alertsClearCmd, alertsTestCmd)
}
