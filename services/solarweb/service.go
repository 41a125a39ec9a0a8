package solarweb

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"solarweb-backend/lib/energystore"
	"solarweb-backend/lib/scrapers/solaredge"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("services/solarweb")
var meter = otel.Meter("services/solarweb")

type Config struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
	SiteId   string `json:"site_id"`

	// local sqlite path or remote libsql DSN
	Db string `json:"db"`

	Mqtt   MqttConfig   `json:"mqtt"`
	Report ReportConfig `json:"report"`
}

type Service struct {
	client    *solaredge.Client
	store     energystore.Store
	publisher *Publisher
	mailer    *ReportMailer

	snapshotCounter metric.Int64Counter
	errorCounter    metric.Int64Counter
}

// NewService wires the scraper to the reading store plus the
// optional MQTT publisher and report mailer. `publisher` and
// `mailer` may be nil.
func NewService(
	client *solaredge.Client,
	database *sql.DB,
	publisher *Publisher,
	mailer *ReportMailer,
) (Service, error) {
	snapshotCounter, err := meter.Int64Counter(
		"solarweb_snapshot_total",
		metric.WithDescription("The total amount of playback snapshots recorded."),
	)
	if err != nil {
		return Service{}, err
	}
	errorCounter, err := meter.Int64Counter(
		"solarweb_snapshot_error_total",
		metric.WithDescription("The total amount of snapshot attempts that failed."),
	)
	if err != nil {
		return Service{}, err
	}
	return Service{
		client:          client,
		store:           energystore.NewStore(database),
		publisher:       publisher,
		mailer:          mailer,
		snapshotCounter: snapshotCounter,
		errorCounter:    errorCounter,
	}, nil
}

func (s Service) Store() energystore.Store {
	return s.store
}

// Snapshot performs one scrape: equipment layout plus playback
// spans, pushed to the store and published to MQTT.
func (s Service) Snapshot(ctx context.Context, unit solaredge.TimeUnit) error {
	ctx, span := tracer.Start(ctx, "service:Snapshot")
	defer span.End()

	equipment, err := s.client.Equipment(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch equipment layout")
		return err
	}

	spans, err := s.client.EnergySpans(ctx, unit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch energy spans")
		return err
	}

	err = s.store.Push(ctx, energystore.PushRequest{
		Equipment: equipment,
		Spans:     spans,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to push readings")
		return err
	}

	if s.publisher != nil && len(spans) > 0 {
		s.publisher.PublishSpan(ctx, equipment, spans[len(spans)-1])
	}

	s.snapshotCounter.Add(ctx, 1)
	span.SetAttributes(attribute.KeyValue{
		Key:   "span_count",
		Value: attribute.IntValue(len(spans)),
	})
	return nil
}

func (s Service) pollOnce(ctx context.Context, unit solaredge.TimeUnit) {
	err := s.Snapshot(ctx, unit)
	if err != nil {
		s.errorCounter.Add(ctx, 1)
		slog.ErrorContext(ctx, "snapshot failed", "err", err)
	}
}

// StartPolling scrapes on a fixed interval until ctx is cancelled.
// Individual scrape failures are logged and counted, never fatal;
// the next tick retries with a fresh login if the session died.
func (s Service) StartPolling(ctx context.Context, interval time.Duration, unit solaredge.TimeUnit) {
	go func() {
		ticker := time.NewTicker(interval)
		s.pollOnce(ctx, unit)
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				s.pollOnce(ctx, unit)
			}
		}
	}()

	if s.mailer != nil {
		go s.reportDaemon(ctx)
	}
}
