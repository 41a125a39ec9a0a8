package commands

import (
	"fmt"
	"os"
	"time"

	"solarweb-backend/lib/energystore"
	"solarweb-backend/lib/serviceutil"
	"solarweb-backend/lib/timezone"
	"solarweb-backend/services/solarweb"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var reportDb *string
var reportDay *string
var reportSend *bool

func init() {
	reportDb = reportCmd.Flags().String("db", "readings.db", "The database to read recorded readings from.")
	reportDay = reportCmd.Flags().String("day", "", "The day to report on (2006-01-02 format), defaults to today.")
	reportSend = reportCmd.Flags().Bool("send", false, "Email the report using the config's report.smtp settings.")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report [--db <path>] [--day <2006-01-02>] [--send]",
	Short: "Summarizes recorded per-inverter production for one day.",
	Run: func(cmd *cobra.Command, args []string) {
		day := timezone.Now()
		if *reportDay != "" {
			var err error
			day, err = time.ParseInLocation(time.DateOnly, *reportDay, timezone.Location)
			if err != nil {
				serviceutil.Fatal("invalid --day", err)
			}
		}

		database, err := energystore.Open(*reportDb)
		if err != nil {
			serviceutil.Fatal("failed to open reading database", err)
		}
		defer database.Close()
		store := energystore.NewStore(database)

		totals, err := store.DailyTotals(cmd.Context(), day)
		if err != nil {
			serviceutil.Fatal("failed to compute daily totals", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Inverter", "kWh"})
		var siteWh float64
		for _, total := range totals {
			t.AppendRow(table.Row{
				total.Equipment.DisplayName,
				fmt.Sprintf("%.2f", total.TotalWh/1000),
			})
			siteWh += total.TotalWh
		}
		t.AppendFooter(table.Row{"Site total", fmt.Sprintf("%.2f", siteWh/1000)})
		t.SetStyle(table.StyleRounded)
		t.Render()

		if *reportSend {
			cfg := loadConfig()
			mailer := solarweb.NewReportMailer(cfg.Report, store)
			err := mailer.SendDailyReport(cmd.Context(), day)
			if err != nil {
				serviceutil.Fatal("failed to send report", err)
			}
		}
	},
}
