package solaredge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"solarweb-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const testSiteId = "1234567"

type fakePortal struct {
	username string
	password string

	csrfToken   string
	ssoMaxAge   int
	loginCount  atomic.Int64
	layoutCount atomic.Int64
}

func (p *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /solaredge-apigw/api/login", func(w http.ResponseWriter, r *http.Request) {
		p.loginCount.Add(1)
		err := r.ParseForm()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("j_username") != p.username || r.PostForm.Get("j_password") != p.password {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `<html><body><div class="login-error">Invalid username or password</div></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:   ssoCookieName,
			Value:  "session",
			MaxAge: p.ssoMaxAge,
			Path:   "/",
		})
		if p.csrfToken != "" {
			http.SetCookie(w, &http.Cookie{
				Name:  csrfCookieName,
				Value: p.csrfToken,
				Path:  "/",
			})
		}
	})

	mux.HandleFunc("GET /solaredge-apigw/api/sites/{site}/layout/logical", func(w http.ResponseWriter, r *http.Request) {
		p.layoutCount.Add(1)
		if r.PathValue("site") != testSiteId {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{
			"logicalTree": {
				"data": {"id": 0, "name": "site", "type": "SITE"},
				"children": [
					{
						"data": {"id": 100, "serialNumber": "SN-INV-1", "name": "Inverter 1", "displayName": "Inverter 1", "relativeOrder": 1, "type": "INVERTER"},
						"children": [
							{
								"data": {"id": 200, "name": "String 1.1", "displayName": "String 1.1", "relativeOrder": 1, "type": "STRING"},
								"children": [
									{"data": {"id": 300, "serialNumber": "SN-PAN-1", "name": "Panel 1.1.1", "displayName": "Panel 1.1.1", "relativeOrder": 1, "type": "PANEL"}, "children": []},
									{"data": {"id": 301, "serialNumber": "SN-PAN-2", "name": "Panel 1.1.2", "displayName": "Panel 1.1.2", "relativeOrder": 2, "type": "PANEL"}, "children": []}
								]
							}
						]
					}
				]
			}
		}`)
	})

	mux.HandleFunc("POST /solaredge-web/p/playbackData", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-TOKEN") != p.csrfToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		err := r.ParseForm()
		if err != nil || r.PostForm.Get("fieldId") != testSiteId {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// the portal emits a javascript object literal, not JSON
		fmt.Fprint(w, `{timeUnit: 4, reportersData: {
			'Tue Jul 15 07:00:00 GMT 2025': {'1': [{key: '300', value: '13.0'}, {key: '301', value: '11.5'}]},
			'Tue Jul 15 06:45:00 GMT 2025': {'1': [{key: '300', value: '12.5'}]}
		}}`)
	})

	return mux
}

func setupClient(t *testing.T) (*Client, *fakePortal) {
	cleanup := telemetry.SetupForTesting("test:scrapers/solaredge")
	t.Cleanup(cleanup)

	portal := &fakePortal{
		username:  "installer@example.com",
		password:  "hunter2",
		csrfToken: "csrf-token-value",
		ssoMaxAge: 7200,
	}
	server := httptest.NewServer(portal.handler())
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), ClientOptions{
		BaseUrl:  server.URL,
		Username: portal.username,
		Password: portal.password,
		SiteId:   testSiteId,
	})
	require.NoError(t, err)
	return client, portal
}

func TestLoginReusesSession(t *testing.T) {
	client, portal := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx))
	require.NoError(t, client.Login(ctx))
	require.EqualValues(t, 1, portal.loginCount.Load())
}

func TestLoginFailed(t *testing.T) {
	client, portal := setupClient(t)
	client.password = "wrong"

	err := client.Login(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
	require.ErrorContains(t, err, "Invalid username or password")
	require.EqualValues(t, 1, portal.loginCount.Load())
}

func TestEquipment(t *testing.T) {
	client, portal := setupClient(t)
	ctx := context.Background()

	equipment, err := client.Equipment(ctx)
	require.NoError(t, err)
	require.Len(t, equipment, 4)

	inverter := equipment[100]
	require.Equal(t, KindInverter, inverter.Kind())
	require.Equal(t, "SN-INV-1", inverter.SerialNumber)
	require.EqualValues(t, 0, inverter.ParentId)

	require.Equal(t, KindString, equipment[200].Kind())
	require.EqualValues(t, 100, equipment[200].ParentId)

	panel := equipment[300]
	require.Equal(t, KindModule, panel.Kind())
	require.EqualValues(t, 200, panel.ParentId)

	// second call should hit the layout cache
	_, err = client.Equipment(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, portal.layoutCount.Load())
}

func TestSessionExpiryRefetchesEquipment(t *testing.T) {
	client, portal := setupClient(t)
	ctx := context.Background()

	// a Max-Age inside the safety margin forces a fresh login per request
	portal.ssoMaxAge = 60

	_, err := client.Equipment(ctx)
	require.NoError(t, err)
	_, err = client.Equipment(ctx)
	require.NoError(t, err)

	// each login invalidates the cached layout
	require.EqualValues(t, 2, portal.loginCount.Load())
	require.EqualValues(t, 2, portal.layoutCount.Load())
}

func TestFindEquipment(t *testing.T) {
	client, _ := setupClient(t)

	equip, similarity, err := client.FindEquipment(context.Background(), "panel 1.1.2")
	require.NoError(t, err)
	require.EqualValues(t, 301, equip.Id)
	require.Greater(t, similarity, 0.8)
}

func TestEnergySpans(t *testing.T) {
	client, _ := setupClient(t)

	spans, err := client.EnergySpans(context.Background(), TimeUnitDay)
	require.NoError(t, err)
	require.Len(t, spans, 2)

	// sorted by start time
	require.True(t, spans[0].StartTime.Before(spans[1].StartTime))
	require.Equal(t, map[int64]float64{300: 12.5}, spans[0].Values)
	require.Equal(t, map[int64]float64{300: 13.0, 301: 11.5}, spans[1].Values)
	require.Equal(t, 15*time.Minute, spans[1].StartTime.Sub(spans[0].StartTime))
}

func TestEnergySpansMissingCSRFCookie(t *testing.T) {
	client, portal := setupClient(t)
	portal.csrfToken = ""

	_, err := client.EnergySpans(context.Background(), TimeUnitDay)
	require.ErrorIs(t, err, ErrNoCSRFToken)
}
