// Package perdis scrapes duty rosters ("Dienstpläne") out of the
// legacy PERDIS WebComm portal, an ASP.NET application with no API.
// Everything here works against server-rendered HTML and an opaque
// session cookie.
package perdis

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ServerProfile identifies one of the known PERDIS installations.
// Outbound requests are only ever made against one of these hosts,
// which doubles as the SSRF allow-list at the proxy boundary.
type ServerProfile struct {
	Id          string
	DisplayName string
	BaseUrl     string
}

var profiles = []ServerProfile{
	{Id: "verkehrs-ag", DisplayName: "Verkehrs-AG", BaseUrl: "https://perdisweb.verkehrs-ag.de"},
	{Id: "regiobus", DisplayName: "RegioBus", BaseUrl: "https://perdis.regiobus.de"},
	{Id: "bielefeld", DisplayName: "Stadtwerke Bielefeld", BaseUrl: "https://anwendungen.stadtwerke-bielefeld.de"},
	{Id: "frankfurt", DisplayName: "ICB Frankfurt", BaseUrl: "https://perdis-info.icb-ffm.de"},
}

// Profiles returns the fixed set of known PERDIS hosts.
func Profiles() []ServerProfile {
	out := make([]ServerProfile, len(profiles))
	copy(out, profiles)
	return out
}

// DefaultProfile is the installation assumed when a client does not
// specify a server.
func DefaultProfile() ServerProfile {
	return profiles[0]
}

// ProfileForURL matches a user-supplied server url against the
// allow-list. Only scheme and host are compared; paths and queries on
// the input are ignored.
func ProfileForURL(raw string) (ServerProfile, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ServerProfile{}, false
	}
	for _, p := range profiles {
		known, err := url.Parse(p.BaseUrl)
		if err != nil {
			continue
		}
		if strings.EqualFold(parsed.Scheme, known.Scheme) &&
			strings.EqualFold(parsed.Host, known.Host) {
			return p, true
		}
	}
	return ServerProfile{}, false
}

// Credentials live in memory for the duration of a login attempt and
// are never persisted.
type Credentials struct {
	Username string
	Password string
}

// Session is the opaque credential issued by a successful login
// handshake. It is only usable against the profile it was established
// for.
type Session struct {
	Cookie        string
	Profile       ServerProfile
	EstablishedAt time.Time
}

// ReauthAfter is how long a session stays restorable, measured from
// establishment rather than last use.
const ReauthAfter = 30 * 24 * time.Hour

// Expired reports whether the session has outlived the
// re-authentication window relative to now.
func (s Session) Expired(now time.Time) bool {
	return now.Sub(s.EstablishedAt) > ReauthAfter
}

// Unknown is the sentinel for roster fields the legacy page did not
// yield. The original portal renders "?" for these as well; values are
// never fabricated.
const Unknown = "?"

// Trip is one scheduled line-service segment ("Fahrt").
type Trip struct {
	Line     string `json:"line"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location"`
}

// DayRoster is the ordered trips of a single day, in scrape order. A
// non-nil empty DayRoster means "confirmed no duties", which is
// distinct from the date being absent from a Roster ("not fetched").
type DayRoster []Trip

// Roster maps YYYY-MM-DD dates to their day rosters.
type Roster map[string]DayRoster

// SortedDates returns the roster's date keys in ascending order; the
// canonical date format makes lexicographic order chronological.
func (r Roster) SortedDates() []string {
	dates := make([]string, 0, len(r))
	for d := range r {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Error taxonomy. Transport-level failures carry their cause;
// everything else is a sentinel the caller can match with errors.Is.
var (
	// ErrTimeout is a single network operation exceeding its bound.
	ErrTimeout = errors.New("request to PERDIS timed out")
	// ErrNoSessionCookie means the portal's entry page issued no
	// Set-Cookie, so no handshake can proceed.
	ErrNoSessionCookie = errors.New("portal returned no session cookie")
	// ErrInvalidCredentials is the only way a bad login is detected:
	// the post-login probe still renders a login page.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAuthTransport wraps transport failures that occur mid-handshake.
	ErrAuthTransport = errors.New("login request failed")
	// ErrNotAuthenticated is returned when a roster fetch is attempted
	// without a usable session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrUnknownServer is a server url outside the allow-list.
	ErrUnknownServer = errors.New("server is not a known PERDIS installation")
)

// TransportError is a network-level failure that is not a timeout.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %s", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}
