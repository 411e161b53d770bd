package cli

import (
	"time"

	"github.com/spf13/cobra"

	"marketwatch/internal/app"
)

var (
	reportWindow   time.Duration
	reportOut      string
	reportTelegram bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the trailing window as a PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Report(cmd.Context(), app.ReportOptions{
			Window:   reportWindow,
			Output:   reportOut,
			Telegram: reportTelegram,
		})
	},
}

func init() {
	reportCmd.Flags().DurationVar(&reportWindow, "window", 0, "Trailing window to chart (defaults to report.window)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "PNG output path (defaults to report.output_path)")
	reportCmd.Flags().BoolVar(&reportTelegram, "telegram", false, "Also send the chart to the configured Telegram chat")
}
