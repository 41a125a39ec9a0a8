package solarweb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"solarweb-backend/lib/energystore"
	"solarweb-backend/lib/scrapers/solaredge"
	"solarweb-backend/lib/telemetry"
	"solarweb-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

const testSiteId = "1234567"

func fakePortal(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /solaredge-apigw/api/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SolarEdge_SSO-1.4", Value: "session", MaxAge: 7200, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "CSRF-TOKEN", Value: "token", Path: "/"})
	})
	mux.HandleFunc("GET /solaredge-apigw/api/sites/{site}/layout/logical", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{"logicalTree": {"children": [
			{"data": {"id": 100, "serialNumber": "SN-INV-1", "displayName": "Inverter 1", "type": "INVERTER"}, "children": [
				{"data": {"id": 300, "displayName": "Panel 1", "type": "PANEL"}, "children": []}
			]}
		]}}`)
	})
	mux.HandleFunc("POST /solaredge-web/p/playbackData", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{timeUnit: 4, reportersData: {
			'Mon Jul 14 11:15:00 GMT 2025': {'1': [{key: '100', value: '48.25'}, {key: '300', value: '12.5'}]}
		}}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupService(t *testing.T) Service {
	cleanup := telemetry.SetupForTesting("test:services/solarweb")
	t.Cleanup(cleanup)

	server := fakePortal(t)
	client, err := solaredge.NewClient(context.Background(), solaredge.ClientOptions{
		BaseUrl:  server.URL,
		Username: "installer@example.com",
		Password: "hunter2",
		SiteId:   testSiteId,
	})
	require.NoError(t, err)

	database, err := energystore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	service, err := NewService(client, database, nil, nil)
	require.NoError(t, err)
	return service
}

func TestSnapshot(t *testing.T) {
	service := setupService(t)
	ctx := context.Background()

	err := service.Snapshot(ctx, solaredge.TimeUnitDay)
	require.NoError(t, err)

	t0 := time.Date(2025, 7, 14, 11, 15, 0, 0, timezone.Location)
	readings, err := service.Store().Pull(ctx, 100, t0, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, readings, 1)
	require.Equal(t, 48.25, readings[0].Wh)

	latest, err := service.Store().Latest(ctx)
	require.NoError(t, err)
	require.True(t, latest.Equal(t0))
}

func TestFormatReport(t *testing.T) {
	day := time.Date(2025, 7, 14, 0, 0, 0, 0, timezone.Location)
	report := formatReport(day, []energystore.EquipmentTotal{
		{
			Equipment: solaredge.Equipment{Id: 100, DisplayName: "Inverter 1", Type: "INVERTER"},
			TotalWh:   10312.5,
		},
		{
			Equipment: solaredge.Equipment{Id: 101, Type: "INVERTER"},
			TotalWh:   500,
		},
	})

	require.Contains(t, report, "Mon Jul 14 2025")
	require.Contains(t, report, "Inverter 1: 10.31 kWh")
	require.Contains(t, report, "inverter 101: 0.50 kWh")
	require.Contains(t, report, "Site total: 10.81 kWh")
}
