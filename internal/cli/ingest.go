package cli

import (
	"github.com/spf13/cobra"

	"pulsewire/internal/app"
)

var (
	ingestCSVPath string
	ingestDryRun  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load readings from a CSV file into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.IngestOptions{
			CSVPath: ingestCSVPath,
			DryRun:  ingestDryRun,
		}
		return getApp().Ingest(cmd.Context(), opts)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSVPath, "csv", "", "Path to the CSV file to ingest")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Parse and validate without writing")
	_ = ingestCmd.MarkFlagRequired("csv")
}
