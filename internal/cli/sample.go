package cli

import (
	"github.com/spf13/cobra"

	"marketwatch/internal/app"
)

var sampleDryRun bool

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Run a single sampling cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sample(cmd.Context(), app.SampleOptions{DryRun: sampleDryRun})
	},
}

func init() {
	sampleCmd.Flags().BoolVar(&sampleDryRun, "dry-run", false, "Fetch quotes without writing to the database")
}
