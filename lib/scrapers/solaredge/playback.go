package solaredge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"solarweb-backend/lib/timezone"

	"github.com/titanous/json5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TimeUnit selects how far back the playback endpoint reports.
// The enum on the portal side has more positions (minute, hour,
// month, year, ...) but only these two actually return data.
type TimeUnit int

const (
	TimeUnitDay  TimeUnit = 4
	TimeUnitWeek TimeUnit = 5
)

func (u TimeUnit) String() string {
	switch u {
	case TimeUnitDay:
		return "day"
	case TimeUnitWeek:
		return "week"
	}
	return fmt.Sprintf("TimeUnit(%d)", int(u))
}

// timestamps in reportersData look like "Tue Jul 15 06:45:00 GMT 2025"
const playbackTimeLayout = "Mon Jan 02 15:04:05 GMT 2006"

// EnergySpan is one 15-minute aggregation window.
type EnergySpan struct {
	StartTime time.Time
	// equipment id -> production energy in Wh
	Values map[int64]float64
}

// the playback body is a javascript object literal (bare keys,
// single quoted strings), not JSON, hence json5
type playbackEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type playbackResponse struct {
	ReportersData map[string]map[string][]playbackEntry `json:"reportersData"`
}

// EnergySpans fetches per-equipment production from the playback
// endpoint, aggregated in 15-minute windows with values in Wh,
// sorted by start time.
func (c *Client) EnergySpans(ctx context.Context, unit TimeUnit) ([]EnergySpan, error) {
	ctx, span := tracer.Start(ctx, "client:EnergySpans")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "time_unit",
		Value: attribute.StringValue(unit.String()),
	})

	err := c.Login(ctx)
	if err != nil {
		return nil, err
	}

	csrf := c.findCookie(csrfCookieName)
	if csrf == nil || csrf.Value == "" {
		span.SetStatus(codes.Error, ErrNoCSRFToken.Error())
		return nil, ErrNoCSRFToken
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("X-CSRF-TOKEN", csrf.Value).
		SetFormData(map[string]string{
			"fieldId":  c.SiteId,
			"timeUnit": strconv.Itoa(int(unit)),
		}).
		Post("/solaredge-web/p/playbackData")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch playback data")
		return nil, err
	}
	if res.IsError() {
		err := fmt.Errorf("playback data returned status %d", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	spans, err := parsePlaybackData(res.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse playback data")
		return nil, err
	}

	span.SetAttributes(attribute.KeyValue{
		Key:   "span_count",
		Value: attribute.IntValue(len(spans)),
	})
	slog.DebugContext(ctx, "fetched energy spans", "site_id", c.SiteId, "count", len(spans))

	return spans, nil
}

func parsePlaybackData(body []byte) ([]EnergySpan, error) {
	var parsed playbackResponse
	err := json5.Unmarshal(body, &parsed)
	if err != nil {
		return nil, fmt.Errorf("unmarshal playback body: %w", err)
	}

	spans := []EnergySpan{}
	for timestamp, reporters := range parsed.ReportersData {
		startTime, err := time.ParseInLocation(playbackTimeLayout, timestamp, timezone.Location)
		if err != nil {
			return nil, fmt.Errorf("parse playback timestamp %q: %w", timestamp, err)
		}

		values := map[int64]float64{}
		for _, entries := range reporters {
			for _, entry := range entries {
				// a non-numeric key or value means the payload
				// format changed upstream, fail loudly
				id, err := strconv.ParseInt(entry.Key, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("parse reporter key %q: %w", entry.Key, err)
				}
				wh, err := strconv.ParseFloat(entry.Value, 64)
				if err != nil {
					return nil, fmt.Errorf("parse reporter value %q: %w", entry.Value, err)
				}
				values[id] = wh
			}
		}

		spans = append(spans, EnergySpan{
			StartTime: startTime,
			Values:    values,
		})
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].StartTime.Before(spans[j].StartTime)
	})
	return spans, nil
}
