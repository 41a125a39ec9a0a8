package solarweb

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"solarweb-backend/lib/energystore"
	"solarweb-backend/lib/timezone"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type ReportConfig struct {
	Smtp SmtpConfig `json:"smtp"`
	To   []string   `json:"to"`
}

// ReportMailer sends a plain-text per-inverter production summary
// once a day.
type ReportMailer struct {
	config ReportConfig
	store  energystore.Store
}

func NewReportMailer(config ReportConfig, store energystore.Store) *ReportMailer {
	return &ReportMailer{config: config, store: store}
}

func formatReport(day time.Time, totals []energystore.EquipmentTotal) string {
	var body strings.Builder
	body.WriteString(fmt.Sprintf("Solar production for %s\n\n", day.Format("Mon Jan 2 2006")))

	var siteWh float64
	for _, total := range totals {
		name := total.Equipment.DisplayName
		if name == "" {
			name = fmt.Sprintf("inverter %d", total.Equipment.Id)
		}
		body.WriteString(fmt.Sprintf("%s: %.2f kWh\n", name, total.TotalWh/1000))
		siteWh += total.TotalWh
	}
	body.WriteString(fmt.Sprintf("\nSite total: %.2f kWh\n", siteWh/1000))
	return body.String()
}

func (m *ReportMailer) SendDailyReport(ctx context.Context, day time.Time) error {
	ctx, span := tracer.Start(ctx, "mailer:SendDailyReport")
	defer span.End()

	totals, err := m.store.DailyTotals(ctx, day)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to compute daily totals")
		return err
	}
	if len(totals) == 0 {
		span.AddEvent("no readings recorded for the day, skipping report")
		return nil
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Solarweb <%s>", m.config.Smtp.EmailAddress)
	mail.To = m.config.To
	mail.Subject = fmt.Sprintf("Solar production report %s", day.Format("2006-01-02"))
	mail.Text = []byte(formatReport(day, totals))

	err = mail.Send(
		fmt.Sprintf("%s:%d", m.config.Smtp.Server, m.config.Smtp.Port),
		smtp.PlainAuth("", m.config.Smtp.EmailAddress, m.config.Smtp.Password, m.config.Smtp.Server),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send report email")
		return err
	}
	return nil
}

// fires shortly after midnight and reports on the day that just
// ended
func (s Service) reportDaemon(ctx context.Context) {
	for {
		now := timezone.Now()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, timezone.Location).AddDate(0, 0, 1)

		select {
		case <-ctx.Done():
			return
		case <-time.After(nextMidnight.Sub(now)):
			err := s.mailer.SendDailyReport(ctx, nextMidnight.AddDate(0, 0, -1))
			if err != nil {
				slog.ErrorContext(ctx, "failed to send daily report", "err", err)
			}
		}
	}
}
