package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pulsewire/internal/app"
)

var (
	showSeries []string
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent stored readings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			SeriesKeys: showSeries,
			Limit:      showLimit,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringSliceVar(&showSeries, "series", nil, "Series keys to display (defaults to every configured job's keys)")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of readings to display")
}
