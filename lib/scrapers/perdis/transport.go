package perdis

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"perdisweb-backend/lib/telemetry"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RequestTimeout bounds every single network operation against the
// portal. There are no retries here; callers decide what a failed
// attempt means.
const RequestTimeout = 30 * time.Second

// Transport executes raw requests against one PERDIS installation. It
// deliberately has no cookie jar: the session cookie crosses the proxy
// hop as an opaque string, so it is supplied and captured verbatim per
// request.
type Transport struct {
	http *resty.Client
}

func NewTransport(profile ServerProfile) (*Transport, error) {
	baseUrl, err := url.Parse(profile.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(profile.BaseUrl)
	client.SetTimeout(RequestTimeout)
	client.SetHeader("User-Agent", "PERDISWEB/1.0")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	telemetry.InstrumentResty(client, "scrapers/perdis/http")

	return &Transport{http: client}, nil
}

// SetTimeout overrides the per-request bound. Exists for tests; the
// production value is RequestTimeout.
func (t *Transport) SetTimeout(d time.Duration) {
	t.http.SetTimeout(d)
}

// Response is the portal's answer with the session cookie (if any)
// already extracted from the Set-Cookie header.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// SessionCookie is the first name=value token of the first
	// Set-Cookie header, verbatim. The format is opaque and must not
	// be interpreted any further.
	SessionCookie string
}

func (t *Transport) Get(ctx context.Context, path, cookie string) (Response, error) {
	return t.request(ctx, http.MethodGet, path, nil, cookie)
}

func (t *Transport) PostForm(ctx context.Context, path string, form url.Values, cookie string) (Response, error) {
	return t.request(ctx, http.MethodPost, path, form, cookie)
}

func (t *Transport) request(ctx context.Context, method, path string, form url.Values, cookie string) (Response, error) {
	req := t.http.R().SetContext(ctx)
	if cookie != "" {
		req.SetHeader("Cookie", cookie)
	}
	if form != nil {
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		req.SetBody(form.Encode())
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return Response{}, classifyTransportError(err)
	}

	return Response{
		StatusCode:    res.StatusCode(),
		Header:        res.Header(),
		Body:          res.Body(),
		SessionCookie: sessionCookieFromHeader(res.Header()),
	}, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return &TransportError{Cause: err}
}

// sessionCookieFromHeader takes the first name=value token of the
// first Set-Cookie header. The portal's cookie format is a wire
// contract we must not parse beyond this.
func sessionCookieFromHeader(header http.Header) string {
	raw := header.Get("Set-Cookie")
	if raw == "" {
		return ""
	}
	token, _, _ := strings.Cut(raw, ";")
	return strings.TrimSpace(token)
}
