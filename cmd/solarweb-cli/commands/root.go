package commands

import (
	"context"
	"fmt"
	"os"

	"solarweb-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var verbose *bool

var rootCmd = &cobra.Command{
	Use:   "solarweb-cli",
	Short: "solarweb-cli scrapes per-inverter/string/module energy data from the monitoring portal's web API.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if *verbose {
			telemetry.InitSlog(true)
		}
	},
}

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging and HTTP message dumps.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
