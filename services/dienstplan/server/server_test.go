package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"perdisweb-backend/lib/scrapers/perdis"
	"perdisweb-backend/lib/telemetry"
	"testing"

	"github.com/stretchr/testify/require"
)

const portalCookie = "ASP.NET_SessionId=proxy7"

const portalListing = `<html><body><table>
<tr><th>Datum</th><th>Linie</th><th>Beginn</th><th>Ende</th><th>Ort</th></tr>
<tr><td>03.01.2026</td><td>5</td><td>06:30</td><td>08:45</td><td>Zentrum</td></tr>
<tr><td>04.01.2026</td><td>7</td><td>05:05</td><td>11:20</td><td>Hauptbahnhof</td></tr>
</table></body></html>`

const portalDetail = `<html><body><table>
<tr><td>Linie 9</td><td>14:00 - 22:15</td></tr>
</table></body></html>`

// proxyPortal is a minimal PERDIS stand-in for exercising the proxy
// boundary end to end.
func proxyPortal() http.Handler {
	loggedIn := false
	mux := http.NewServeMux()

	mux.HandleFunc("/WebComm/default.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			r.ParseForm()
			if r.Header.Get("Cookie") == portalCookie &&
				r.PostFormValue("user") == "max" &&
				r.PostFormValue("passwd") == "geheim" {
				loggedIn = true
			}
			w.Write([]byte("<html><body>Willkommen</body></html>"))
			return
		}
		w.Header().Set("Set-Cookie", portalCookie+"; path=/")
		w.Write([]byte("<html><body>Bitte anmelden</body></html>"))
	})
	mux.HandleFunc("/WebComm/roster.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != portalCookie || !loggedIn {
			w.Write([]byte("<html><body><form>Anmelden</form></body></html>"))
			return
		}
		w.Write([]byte(portalListing))
	})
	mux.HandleFunc("/WebComm/shift.aspx", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(portalDetail))
	})
	mux.HandleFunc("/WebComm/logout.aspx", func(w http.ResponseWriter, r *http.Request) {
		loggedIn = false
		w.Write([]byte("ok"))
	})

	return mux
}

func post(t *testing.T, handler http.Handler, req Request) (int, Response) {
	body, err := json.Marshal(req)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/perdis", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	var res Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	return w.Code, res
}

func TestProxyLogin(t *testing.T) {
	portal := httptest.NewServer(proxyPortal())
	t.Cleanup(portal.Close)
	handler := handlerFor(t, portal.URL)

	status, res := post(t, handler, Request{
		ServerUrl: portal.URL,
		Username:  "max",
		Password:  "geheim",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)
	require.Equal(t, portalCookie, res.Session)
	require.Equal(t, []string{"2026-01-03", "2026-01-04"}, res.Roster.SortedDates())
	require.Equal(t, perdis.DayRoster{
		{Line: "5", Start: "06:30", End: "08:45", Location: "Zentrum"},
	}, res.Roster["2026-01-03"])
}

func TestProxyShiftDetail(t *testing.T) {
	portal := httptest.NewServer(proxyPortal())
	t.Cleanup(portal.Close)
	handler := handlerFor(t, portal.URL)

	status, res := post(t, handler, Request{
		ServerUrl: portal.URL,
		Username:  "max",
		Password:  "geheim",
		Action:    "shift",
		Date:      "2026-01-03",
	})
	require.Equal(t, http.StatusOK, status)
	require.True(t, res.Success)
	require.Equal(t, perdis.DayRoster{
		{Line: "9", Start: "14:00", End: "22:15", Location: perdis.Unknown},
	}, res.Shifts)
}

func TestProxyInvalidCredentials(t *testing.T) {
	portal := httptest.NewServer(proxyPortal())
	t.Cleanup(portal.Close)
	handler := handlerFor(t, portal.URL)

	status, res := post(t, handler, Request{
		ServerUrl: portal.URL,
		Username:  "max",
		Password:  "falsch",
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.False(t, res.Success)
	require.Equal(t, "Benutzername oder Passwort falsch", res.Error)
}

func TestProxyRejectsUnknownServer(t *testing.T) {
	portal := httptest.NewServer(proxyPortal())
	t.Cleanup(portal.Close)
	handler := handlerFor(t, portal.URL)

	status, res := post(t, handler, Request{
		ServerUrl: "https://attacker.example.com",
		Username:  "max",
		Password:  "geheim",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Unbekannter PERDIS-Server", res.Error)
}

func TestProxyValidatesInput(t *testing.T) {
	portal := httptest.NewServer(proxyPortal())
	t.Cleanup(portal.Close)
	handler := handlerFor(t, portal.URL)

	status, _ := post(t, handler, Request{ServerUrl: portal.URL})
	require.Equal(t, http.StatusBadRequest, status)

	status, res := post(t, handler, Request{
		ServerUrl: portal.URL,
		Username:  "max",
		Password:  "geheim",
		Action:    "shift",
		Date:      "not a date",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Datum erforderlich", res.Error)
}

func TestProxyRejectsGet(t *testing.T) {
	portal := httptest.NewServer(proxyPortal())
	t.Cleanup(portal.Close)
	handler := handlerFor(t, portal.URL)

	r := httptest.NewRequest(http.MethodGet, "/api/perdis", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestProxyUpstreamGone(t *testing.T) {
	portal := httptest.NewServer(proxyPortal())
	url := portal.URL
	portal.Close()
	handler := handlerFor(t, url)

	status, res := post(t, handler, Request{
		ServerUrl: url,
		Username:  "max",
		Password:  "geheim",
	})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Keine Verbindung zum Server möglich", res.Error)
}

func handlerFor(t *testing.T, portalURL string) http.Handler {
	cleanup := telemetry.SetupForTesting("test:services/dienstplan/server")
	t.Cleanup(cleanup)

	return NewHandler(Options{
		ResolveProfile: func(serverUrl string) (perdis.ServerProfile, bool) {
			if serverUrl != portalURL {
				return perdis.ServerProfile{}, false
			}
			return perdis.ServerProfile{
				Id:          "fixture",
				DisplayName: "Fixture",
				BaseUrl:     portalURL,
			}, true
		},
	})
}
