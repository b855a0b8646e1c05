package dienstplan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"perdisweb-backend/lib/kvstore"
	"perdisweb-backend/lib/scrapers/perdis"
	"perdisweb-backend/lib/telemetry"
	"perdisweb-backend/lib/timezone"
	"perdisweb-backend/services/dienstplan/db"
	"sync"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = telemetry.Tracer("perdisweb.services.dienstplan")

type Options struct {
	// ResolveProfile maps a user-supplied server url onto the
	// allow-list. Defaults to perdis.ProfileForURL; tests swap in a
	// resolver that admits their fixture portal.
	ResolveProfile func(serverUrl string) (perdis.ServerProfile, bool)
	// CacheTTL defaults to the package constant.
	CacheTTL time.Duration
}

// Service answers "give me the roster for date D" for one signed-in
// user: cache first, scrape on miss, never cache failures. Independent
// Service instances carry independent sessions.
type Service struct {
	qry   *db.Queries
	cache *rosterCache

	mu      sync.Mutex
	client  *perdis.Client
	session *perdis.Session

	flight  singleflight.Group
	resolve func(string) (perdis.ServerProfile, bool)
}

func NewService(database *sql.DB, store kvstore.Store, options Options) *Service {
	resolve := options.ResolveProfile
	if resolve == nil {
		resolve = perdis.ProfileForURL
	}
	ttl := options.CacheTTL
	if ttl == 0 {
		ttl = CacheTTL
	}
	return &Service{
		qry:     db.New(database),
		cache:   newRosterCache(store, ttl),
		resolve: resolve,
	}
}

// Login runs the portal handshake and persists the resulting session
// (cookie + user record, never the password).
func (s *Service) Login(ctx context.Context, username, password, serverUrl string) error {
	ctx, span := tracer.Start(ctx, "service:Login")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	profile, ok := s.resolve(serverUrl)
	if !ok {
		span.SetStatus(codes.Error, "server not on allow-list")
		return perdis.ErrUnknownServer
	}

	client, err := perdis.NewClient(profile)
	if err != nil {
		return err
	}
	session, err := client.Auth.Login(ctx, perdis.Credentials{
		Username: username,
		Password: password,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return err
	}

	token, err := random.String(32)
	if err != nil {
		return fmt.Errorf("failed to mint session token: %w", err)
	}
	err = s.qry.SaveLogin(ctx, db.Login{
		Username:      username,
		Server:        profile.BaseUrl,
		Token:         token,
		Cookie:        session.Cookie,
		EstablishedAt: session.EstablishedAt.UnixNano(),
		LastLogin:     session.EstablishedAt.Format(time.RFC3339),
	})
	if err != nil {
		// losing persistence only costs a re-login after restart
		span.RecordError(err)
		slog.WarnContext(ctx, "failed to persist login", "err", err)
	}

	s.mu.Lock()
	s.client = client
	s.session = &session
	s.mu.Unlock()
	return nil
}

// Logout tears down local state unconditionally; the portal-side
// logout is best effort.
func (s *Service) Logout(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "service:Logout")
	defer span.End()

	s.mu.Lock()
	client, session := s.client, s.session
	s.client, s.session = nil, nil
	s.mu.Unlock()

	if client != nil && session != nil {
		client.Auth.Logout(ctx, *session)
	}

	err := s.qry.DeleteLogins(ctx)
	if err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "failed to clear persisted login", "err", err)
	}
	s.cache.Clear(ctx)
}

// ensureSession returns the in-memory session or restores the
// persisted one. perdis.ErrNotAuthenticated means the user has to log
// in again with their password.
func (s *Service) ensureSession(ctx context.Context) (*perdis.Client, perdis.Session, error) {
	s.mu.Lock()
	client, session := s.client, s.session
	s.mu.Unlock()
	if client != nil && session != nil {
		return client, *session, nil
	}

	login, err := s.qry.GetLogin(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, perdis.Session{}, perdis.ErrNotAuthenticated
	}
	if err != nil {
		return nil, perdis.Session{}, err
	}

	profile, ok := s.resolve(login.Server)
	if !ok {
		return nil, perdis.Session{}, perdis.ErrNotAuthenticated
	}
	client, err = perdis.NewClient(profile)
	if err != nil {
		return nil, perdis.Session{}, err
	}

	restored := perdis.Session{
		Cookie:        login.Cookie,
		Profile:       profile,
		EstablishedAt: time.Unix(0, login.EstablishedAt).In(timezone.Location),
	}
	if !client.Auth.RestoreSession(ctx, restored) {
		return nil, perdis.Session{}, perdis.ErrNotAuthenticated
	}

	s.mu.Lock()
	s.client = client
	s.session = &restored
	s.mu.Unlock()
	return client, restored, nil
}

// GetDay returns the roster for one date (YYYY-MM-DD). Concurrent
// calls for the same date coalesce into a single scrape; different
// dates proceed independently.
func (s *Service) GetDay(ctx context.Context, date string) (perdis.DayRoster, error) {
	ctx, span := tracer.Start(ctx, "service:GetDay")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	if day, ok := s.cache.Get(ctx, date); ok {
		span.SetStatus(codes.Ok, "CACHE HIT")
		return day, nil
	}

	result, err, _ := s.flight.Do(date, func() (any, error) {
		// a coalesced waiter may arrive after the winner already
		// populated the cache
		if day, ok := s.cache.Get(ctx, date); ok {
			return day, nil
		}
		return s.scrapeDay(ctx, date)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		return nil, err
	}
	return result.(perdis.DayRoster), nil
}

// scrapeDay prefers the listing page (it covers many days per fetch,
// all of which get cached) and falls back to the single-day detail
// page for dates the listing doesn't carry. Failures are surfaced
// uncached so a transient outage isn't remembered as "no duties".
func (s *Service) scrapeDay(ctx context.Context, date string) (perdis.DayRoster, error) {
	client, session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	roster, err := client.FetchListing(ctx, session)
	if err != nil {
		s.dropSessionIfRejected(err)
		return nil, err
	}
	for d, day := range roster {
		s.cache.Put(ctx, d, day)
	}
	if day, ok := roster[date]; ok {
		return day, nil
	}

	day, err := client.FetchDay(ctx, session, date)
	if err != nil {
		s.dropSessionIfRejected(err)
		return nil, err
	}
	s.cache.Put(ctx, date, day)
	return day, nil
}

// dropSessionIfRejected forgets the in-memory session once the portal
// stops honoring it, so the next access goes through restore or a full
// re-login instead of hammering a dead cookie.
func (s *Service) dropSessionIfRejected(err error) {
	if !errors.Is(err, perdis.ErrNotAuthenticated) {
		return
	}
	s.mu.Lock()
	s.client, s.session = nil, nil
	s.mu.Unlock()
}

// GetRange returns the roster between two dates inclusive. The
// listing page is treated as the authority for every requested date:
// dates it does not mention come back confirmed-empty and are cached
// that way. The portal renders the full planning horizon on the
// listing, so callers asking for dates beyond it get "frei" rather
// than a per-date detail fetch; GetDay does fall back to the detail
// page for a single date when that distinction matters.
func (s *Service) GetRange(ctx context.Context, fromDate, toDate string) (perdis.Roster, error) {
	ctx, span := tracer.Start(ctx, "service:GetRange")
	defer span.End()
	span.SetAttributes(
		attribute.String("from", fromDate),
		attribute.String("to", toDate),
	)

	from, err := time.ParseInLocation("2006-01-02", fromDate, timezone.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", toDate, timezone.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid to date: %w", err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s precedes start %s", toDate, fromDate)
	}

	out := perdis.Roster{}
	var missing []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		if day, ok := s.cache.Get(ctx, date); ok {
			out[date] = day
			continue
		}
		missing = append(missing, date)
	}
	if len(missing) == 0 {
		return out, nil
	}

	client, session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	roster, err := client.FetchListing(ctx, session)
	if err != nil {
		s.dropSessionIfRejected(err)
		return nil, err
	}
	for d, day := range roster {
		s.cache.Put(ctx, d, day)
	}
	for _, date := range missing {
		day, ok := roster[date]
		if !ok {
			day = perdis.DayRoster{}
			s.cache.Put(ctx, date, day)
		}
		out[date] = day
	}
	return out, nil
}

// ShiftPDF fetches the printable roster bytes for a date.
func (s *Service) ShiftPDF(ctx context.Context, date string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "service:ShiftPDF")
	defer span.End()

	client, session, err := s.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	return client.ShiftPDF(ctx, session, date)
}

// Username reports who is signed in, empty when nobody is.
func (s *Service) Username(ctx context.Context) string {
	login, err := s.qry.GetLogin(ctx)
	if err != nil {
		return ""
	}
	return login.Username
}
