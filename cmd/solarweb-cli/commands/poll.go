package commands

import (
	"log/slog"
	"time"

	"solarweb-backend/lib/energystore"
	"solarweb-backend/lib/serviceutil"
	"solarweb-backend/lib/telemetry"
	"solarweb-backend/services/solarweb"

	"github.com/spf13/cobra"
)

var pollDb *string
var pollInterval *time.Duration
var pollUnit *string

func init() {
	pollDb = pollCmd.Flags().String("db", "readings.db", "The database to record readings into, overrides the config's db.")
	pollInterval = pollCmd.Flags().Duration("interval", time.Minute*15, "How often to scrape the playback endpoint.")
	pollUnit = pollCmd.Flags().String("unit", "day", "Playback window per scrape: day or week.")
	rootCmd.AddCommand(pollCmd)
}

var pollCmd = &cobra.Command{
	Use:   "poll [--db <path/to/readings.db>] [--interval <duration>] [--unit day|week]",
	Short: "Periodically scrapes the portal, recording readings and publishing to MQTT.",
	Run: func(cmd *cobra.Command, args []string) {
		unit, err := parseTimeUnit(*pollUnit)
		if err != nil {
			serviceutil.Fatal("invalid flag", err)
		}

		cfg := loadConfig()
		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)
		client := createClient(ctx, cfg)

		dsn := cfg.Db
		if cmd.Flags().Changed("db") || dsn == "" {
			dsn = *pollDb
		}
		database, err := energystore.Open(dsn)
		if err != nil {
			serviceutil.Fatal("failed to open reading database", err)
		}
		defer database.Close()

		var publisher *solarweb.Publisher
		if cfg.Mqtt.Host != "" {
			publisher, err = solarweb.NewPublisher(cfg.Mqtt, cfg.SiteId)
			if err != nil {
				serviceutil.Fatal("failed to connect to mqtt broker", err)
			}
			defer publisher.Close()
		}

		var mailer *solarweb.ReportMailer
		if cfg.Report.Smtp.Server != "" {
			mailer = solarweb.NewReportMailer(cfg.Report, energystore.NewStore(database))
		}

		service, err := solarweb.NewService(client, database, publisher, mailer)
		if err != nil {
			serviceutil.Fatal("failed to initialize service", err)
		}

		slog.Info(
			"polling",
			"site_id", cfg.SiteId,
			"interval", pollInterval.String(),
			"db", dsn,
			"mqtt", publisher != nil,
			"report", mailer != nil,
		)
		service.StartPolling(ctx, *pollInterval, unit)
		<-ctx.Done()
	},
}
