package energystore

import (
	"context"
	"testing"
	"time"

	"solarweb-backend/lib/scrapers/solaredge"
	"solarweb-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) Store {
	database, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func testEquipment() map[int64]solaredge.Equipment {
	return map[int64]solaredge.Equipment{
		100: {Id: 100, SerialNumber: "SN-INV-1", DisplayName: "Inverter 1", Type: "INVERTER"},
		300: {Id: 300, SerialNumber: "SN-PAN-1", DisplayName: "Panel 1.1.1", Type: "PANEL", ParentId: 200},
	}
}

func TestPushPull(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t0 := time.Date(2025, 7, 14, 11, 15, 0, 0, timezone.Location)
	t1 := t0.Add(15 * time.Minute)

	err := store.Push(ctx, PushRequest{
		Equipment: testEquipment(),
		Spans: []solaredge.EnergySpan{
			{StartTime: t0, Values: map[int64]float64{100: 48.25, 300: 12.5}},
			{StartTime: t1, Values: map[int64]float64{100: 55.0}},
		},
	})
	require.NoError(t, err)

	readings, err := store.Pull(ctx, 100, t0, t1.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.Equal(t, 48.25, readings[0].Wh)
	require.True(t, readings[0].StartTime.Equal(t0))
	require.Equal(t, 55.0, readings[1].Wh)

	// before bound is exclusive
	readings, err = store.Pull(ctx, 100, t0, t1)
	require.NoError(t, err)
	require.Len(t, readings, 1)
}

func TestPushReplacesOverlappingSpans(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t0 := time.Date(2025, 7, 14, 11, 15, 0, 0, timezone.Location)

	push := func(wh float64) {
		err := store.Push(ctx, PushRequest{
			Equipment: testEquipment(),
			Spans: []solaredge.EnergySpan{
				{StartTime: t0, Values: map[int64]float64{100: wh}},
			},
		})
		require.NoError(t, err)
	}
	push(48.25)
	push(50.0)

	readings, err := store.Pull(ctx, 100, t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	require.Equal(t, 50.0, readings[0].Wh)
}

func TestLatest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.True(t, latest.IsZero())

	t0 := time.Date(2025, 7, 14, 11, 15, 0, 0, timezone.Location)
	err = store.Push(ctx, PushRequest{
		Spans: []solaredge.EnergySpan{
			{StartTime: t0, Values: map[int64]float64{100: 1}},
		},
	})
	require.NoError(t, err)

	latest, err = store.Latest(ctx)
	require.NoError(t, err)
	require.True(t, latest.Equal(t0))
}

func TestDailyTotals(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	day := time.Date(2025, 7, 14, 0, 0, 0, 0, timezone.Location)
	err := store.Push(ctx, PushRequest{
		Equipment: testEquipment(),
		Spans: []solaredge.EnergySpan{
			{StartTime: day.Add(11 * time.Hour), Values: map[int64]float64{100: 48.25, 300: 12.5}},
			{StartTime: day.Add(12 * time.Hour), Values: map[int64]float64{100: 55.0}},
			// next day, must not be counted
			{StartTime: day.AddDate(0, 0, 1), Values: map[int64]float64{100: 99.0}},
		},
	})
	require.NoError(t, err)

	totals, err := store.DailyTotals(ctx, day)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	require.EqualValues(t, 100, totals[0].Equipment.Id)
	require.Equal(t, solaredge.KindInverter, totals[0].Equipment.Kind())
	require.InDelta(t, 103.25, totals[0].TotalWh, 0.001)
}
