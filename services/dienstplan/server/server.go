// Package server is the CORS-proxy boundary in front of the PERDIS
// portals. Browsers cannot carry a cookie session to an arbitrary
// legacy host, so this endpoint performs the whole handshake and
// scrape server-side per request and hands back plain JSON.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"perdisweb-backend/lib/scrapers/perdis"
	"perdisweb-backend/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("perdisweb.services.dienstplan.server")

type Request struct {
	ServerUrl string `json:"serverUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	// Action is "login" (default) for the multi-day listing or
	// "shift" for a single day's detail.
	Action string `json:"action"`
	Date   string `json:"date"`
}

type Response struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
	Roster  perdis.Roster    `json:"roster,omitempty"`
	Shifts  perdis.DayRoster `json:"shifts,omitempty"`
	Session string           `json:"session,omitempty"`
}

type Options struct {
	// ResolveProfile enforces the allow-list; defaults to
	// perdis.ProfileForURL so the proxy cannot be used as an open
	// relay.
	ResolveProfile func(serverUrl string) (perdis.ServerProfile, bool)
}

type Handler struct {
	resolve func(string) (perdis.ServerProfile, bool)
}

func NewHandler(options Options) Handler {
	resolve := options.ResolveProfile
	if resolve == nil {
		resolve = perdis.ProfileForURL
	}
	return Handler{resolve: resolve}
}

func Register(mux *http.ServeMux, options Options) {
	mux.Handle("/api/perdis", NewHandler(options))
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "server:ServeHTTP")
	defer span.End()

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{
			Error: "Method Not Allowed",
		})
		return
	}

	var req Request
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, Response{
			Error: "Username und Passwort erforderlich",
		})
		return
	}
	span.SetAttributes(attribute.String("username", req.Username))

	serverUrl := req.ServerUrl
	if serverUrl == "" {
		serverUrl = perdis.DefaultProfile().BaseUrl
	}
	profile, ok := h.resolve(serverUrl)
	if !ok {
		// SSRF guard: refuse to relay anywhere but known portals
		span.SetStatus(codes.Error, "server not on allow-list")
		writeJSON(w, http.StatusBadRequest, Response{
			Error: "Unbekannter PERDIS-Server",
		})
		return
	}

	if req.Action == "shift" {
		if _, ok := perdis.ParseDate(req.Date); !ok {
			writeJSON(w, http.StatusBadRequest, Response{
				Error: "Datum erforderlich",
			})
			return
		}
	}

	client, err := perdis.NewClient(profile)
	if err != nil {
		writeUpstreamError(w, span, err)
		return
	}
	session, err := client.Auth.Login(ctx, perdis.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if errors.Is(err, perdis.ErrInvalidCredentials) {
		span.SetStatus(codes.Error, "invalid credentials")
		writeJSON(w, http.StatusUnauthorized, Response{
			Error: "Benutzername oder Passwort falsch",
		})
		return
	}
	if err != nil {
		writeUpstreamError(w, span, err)
		return
	}

	switch req.Action {
	case "shift":
		date, _ := perdis.ParseDate(req.Date)
		shifts, err := client.FetchDay(ctx, session, date)
		if err != nil {
			writeUpstreamError(w, span, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Shifts:  shifts,
			Session: session.Cookie,
		})
	default:
		roster, err := client.FetchListing(ctx, session)
		if err != nil {
			writeUpstreamError(w, span, err)
			return
		}
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Erfolgreich angemeldet",
			Roster:  roster,
			Session: session.Cookie,
		})
	}
}

// writeUpstreamError maps transport-level failures onto a 500 with a
// user-facing message. Internal details stay in the trace; tokens and
// stack traces never reach the client.
func writeUpstreamError(w http.ResponseWriter, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	writeJSON(w, http.StatusInternalServerError, Response{
		Error: "Keine Verbindung zum Server möglich",
	})
}

func writeJSON(w http.ResponseWriter, status int, res Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(res)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
