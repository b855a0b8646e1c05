package perdis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransportCookieHandling(t *testing.T) {
	var receivedCookie string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedCookie = r.Header.Get("Cookie")
		w.Header().Set("Set-Cookie", "ASP.NET_SessionId=xyz; path=/; HttpOnly; Secure")
		w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)

	transport, err := NewTransport(ServerProfile{BaseUrl: ts.URL})
	require.NoError(t, err)

	res, err := transport.Get(context.Background(), "/WebComm/default.aspx", "ASP.NET_SessionId=abc; extra=1")
	require.NoError(t, err)

	// the caller's cookie crosses the wire verbatim
	require.Equal(t, "ASP.NET_SessionId=abc; extra=1", receivedCookie)
	// only the first name=value token of Set-Cookie is kept
	require.Equal(t, "ASP.NET_SessionId=xyz", res.SessionCookie)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, []byte("ok"), res.Body)
}

func TestTransportNoSetCookie(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	t.Cleanup(ts.Close)

	transport, err := NewTransport(ServerProfile{BaseUrl: ts.URL})
	require.NoError(t, err)

	res, err := transport.Get(context.Background(), "/", "")
	require.NoError(t, err)
	require.Empty(t, res.SessionCookie)
}

func TestTransportTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(ts.Close)

	transport, err := NewTransport(ServerProfile{BaseUrl: ts.URL})
	require.NoError(t, err)
	transport.SetTimeout(20 * time.Millisecond)

	_, err = transport.Get(context.Background(), "/", "")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestTransportNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	transport, err := NewTransport(ServerProfile{BaseUrl: ts.URL})
	require.NoError(t, err)
	ts.Close()

	_, err = transport.Get(context.Background(), "/", "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTimeout)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}
