package perdis

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Client ties the transport, the authenticator and the pure scrape
// functions together for one PERDIS installation. It holds no session
// state of its own; the caller owns the Session and passes it in, so
// independent sessions can coexist in one process.
type Client struct {
	Profile   ServerProfile
	Transport *Transport
	Auth      *Authenticator
}

func NewClient(profile ServerProfile) (*Client, error) {
	transport, err := NewTransport(profile)
	if err != nil {
		return nil, err
	}
	return &Client{
		Profile:   profile,
		Transport: transport,
		Auth:      NewAuthenticator(profile, transport),
	}, nil
}

// FetchListing scrapes the multi-day roster listing.
func (c *Client) FetchListing(ctx context.Context, session Session) (Roster, error) {
	ctx, span := tracer.Start(ctx, "client:FetchListing")
	defer span.End()

	res, err := c.Transport.Get(ctx, rosterEndpoint, session.Cookie)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch roster listing")
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("roster listing returned status %d", res.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return nil, &TransportError{Cause: err}
	}
	if bouncedToLogin(res.Body) {
		// the portal renders the login form with a 200 when the
		// session has died
		span.SetStatus(codes.Error, "session rejected by portal")
		return nil, ErrNotAuthenticated
	}

	roster, err := ParseListing(res.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse roster listing")
		return nil, err
	}
	span.SetAttributes(attribute.Int("dates", len(roster)))
	return roster, nil
}

// FetchDay scrapes the single-day detail page for date (YYYY-MM-DD).
// An empty DayRoster means the portal confirmed no duties.
func (c *Client) FetchDay(ctx context.Context, session Session, date string) (DayRoster, error) {
	ctx, span := tracer.Start(ctx, "client:FetchDay")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	res, err := c.Transport.Get(ctx, shiftEndpoint+"?"+date, session.Cookie)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch shift detail")
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("shift detail returned status %d", res.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return nil, &TransportError{Cause: err}
	}
	if bouncedToLogin(res.Body) {
		span.SetStatus(codes.Error, "session rejected by portal")
		return nil, ErrNotAuthenticated
	}

	trip, err := ParseShiftDetail(res.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse shift detail")
		return nil, err
	}
	if trip.Empty() {
		return DayRoster{}, nil
	}
	return DayRoster{trip}, nil
}

// ShiftPDF fetches the printable roster for date as raw bytes. The
// content is opaque here; rendering and sharing live elsewhere.
func (c *Client) ShiftPDF(ctx context.Context, session Session, date string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:ShiftPDF")
	defer span.End()
	span.SetAttributes(attribute.String("date", date))

	res, err := c.Transport.Get(ctx, printEndpoint+"?"+date, session.Cookie)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch shift pdf")
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("shift pdf returned status %d", res.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return nil, &TransportError{Cause: err}
	}
	return res.Body, nil
}
