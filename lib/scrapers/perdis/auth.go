package perdis

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"perdisweb-backend/lib/timezone"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

// WebComm endpoints. These paths are a fixed wire contract of the
// legacy portal, as are the form field names in the login post.
const (
	entryEndpoint  = "/WebComm/default.aspx"
	primeQuery     = "TestingCookie=1"
	rosterEndpoint = "/WebComm/roster.aspx"
	shiftEndpoint  = "/WebComm/shift.aspx"
	printEndpoint  = "/WebComm/shiprint.aspx"
	logoutEndpoint = "/WebComm/logout.aspx"
)

// Authenticator performs the portal's cookie-session login handshake:
// prime a session cookie, post the credentials, then probe a protected
// page. The portal answers 200 to bad logins too, so the probe is the
// only credential check there is.
type Authenticator struct {
	profile   ServerProfile
	transport *Transport
}

func NewAuthenticator(profile ServerProfile, transport *Transport) *Authenticator {
	return &Authenticator{profile: profile, transport: transport}
}

func (a *Authenticator) Login(ctx context.Context, creds Credentials) (Session, error) {
	ctx, span := tracer.Start(ctx, "authenticator:Login")
	defer span.End()

	// step 1: prime a session cookie off the entry page
	res, err := a.transport.Get(ctx, entryEndpoint+"?"+primeQuery, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach entry page")
		return Session{}, err
	}
	cookie := res.SessionCookie
	if cookie == "" {
		span.SetStatus(codes.Error, ErrNoSessionCookie.Error())
		return Session{}, ErrNoSessionCookie
	}

	// step 2: submit credentials under that cookie
	form := url.Values{}
	form.Set("user", creds.Username)
	form.Set("passwd", creds.Password)
	form.Set("login", "Login")

	_, err = a.transport.PostForm(ctx, entryEndpoint, form, cookie)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential submission failed")
		return Session{}, fmt.Errorf("%w: %v", ErrAuthTransport, err)
	}

	// step 3: the only way to detect a bad login is to probe a
	// protected page and check we weren't bounced back to the form
	err = a.verifyAccess(ctx, cookie)
	if err != nil {
		span.SetStatus(codes.Error, "access verification failed")
		return Session{}, err
	}

	return Session{
		Cookie:        cookie,
		Profile:       a.profile,
		EstablishedAt: timezone.Now(),
	}, nil
}

// login-page markers; their presence in a response means the portal
// bounced us back to the form
var loginMarkers = []string{"login", "log in", "anmelden"}

// bouncedToLogin reports whether a protected-page response is really
// the login form. The portal answers 200 either way, so this is the
// only signal for dead sessions and bad credentials alike.
func bouncedToLogin(body []byte) bool {
	lowered := strings.ToLower(string(body))
	for _, marker := range loginMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func (a *Authenticator) verifyAccess(ctx context.Context, cookie string) error {
	res, err := a.transport.Get(ctx, rosterEndpoint, cookie)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthTransport, err)
	}
	if res.StatusCode != http.StatusOK || bouncedToLogin(res.Body) {
		return ErrInvalidCredentials
	}
	return nil
}

// Logout tells the portal to drop the session, best effort. Local
// teardown must always succeed, so transport failures are logged and
// swallowed.
func (a *Authenticator) Logout(ctx context.Context, session Session) {
	ctx, span := tracer.Start(ctx, "authenticator:Logout")
	defer span.End()

	_, err := a.transport.Get(ctx, logoutEndpoint, session.Cookie)
	if err != nil {
		span.RecordError(err)
		slog.WarnContext(ctx, "portal logout failed", "err", err)
	}
}

// RestoreSession reports whether a persisted session is still usable.
// Sessions past the re-authentication window are rejected without a
// network call; fresher ones are re-verified against the portal. It
// never returns an error: any failure just means "log in again".
func (a *Authenticator) RestoreSession(ctx context.Context, session Session) bool {
	ctx, span := tracer.Start(ctx, "authenticator:RestoreSession")
	defer span.End()

	if session.Expired(timezone.Now()) {
		span.AddEvent("session past re-authentication window")
		return false
	}

	err := a.verifyAccess(ctx, session.Cookie)
	if err != nil {
		span.RecordError(err)
		return false
	}
	return true
}
