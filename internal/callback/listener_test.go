package callback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveRequest(l *Listener, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleCallback_Success(t *testing.T) {
	l := NewListener(Options{})

	rec := serveRequest(l, http.MethodGet, "/oauth/callback?code=4%2F0AY0e-g7abc&state=0b5a7a6e-1111-4c2b-9a51-2f1d3c4e5f60&scope=email")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "OAuth Success!")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	assert.True(t, l.Completed())
	result, ok := l.Result()
	require.True(t, ok)
	assert.Equal(t, "4/0AY0e-g7abc", result.Code)
	assert.Equal(t, "0b5a7a6e-1111-4c2b-9a51-2f1d3c4e5f60", result.State)

	select {
	case <-l.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestHandleCallback_MissingParameters(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"no parameters", "/oauth/callback"},
		{"missing state", "/oauth/callback?code=abc"},
		{"missing code", "/oauth/callback?state=xyz"},
		{"empty code", "/oauth/callback?code=&state=xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewListener(Options{})

			rec := serveRequest(l, http.MethodGet, tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Missing code or state parameter")
			assert.False(t, l.Completed())
			_, ok := l.Result()
			assert.False(t, ok)
			assert.Nil(t, l.ProviderError())
		})
	}
}

func TestHandleCallback_ProviderError(t *testing.T) {
	l := NewListener(Options{})

	rec := serveRequest(l, http.MethodGet, "/oauth/callback?error=access_denied&error_description=User+denied+access&state=xyz")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
	assert.Contains(t, rec.Body.String(), "User denied access")
	assert.False(t, l.Completed())
	_, ok := l.Result()
	assert.False(t, ok)

	perr := l.ProviderError()
	require.NotNil(t, perr)
	assert.Equal(t, "access_denied", perr.Code)
	assert.Equal(t, "provider returned access_denied: User denied access", perr.Error())

	select {
	case <-l.Failed():
	default:
		t.Fatal("expected Failed to be closed")
	}
}

func TestHandleCallback_ProviderErrorIsEscaped(t *testing.T) {
	l := NewListener(Options{})

	rec := serveRequest(l, http.MethodGet, "/oauth/callback?error=%3Cscript%3Ealert(1)%3C%2Fscript%3E")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
}

func TestHandleCallback_OnlyFirstCallbackIsStored(t *testing.T) {
	l := NewListener(Options{})

	first := serveRequest(l, http.MethodGet, "/oauth/callback?code=first&state=s1")
	second := serveRequest(l, http.MethodGet, "/oauth/callback?code=second&state=s2")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Contains(t, second.Body.String(), "Callback already processed")

	result, ok := l.Result()
	require.True(t, ok)
	assert.Equal(t, Result{Code: "first", State: "s1"}, result)
}

func TestHandleCallback_Routing(t *testing.T) {
	l := NewListener(Options{Path: "/custom/cb"})

	assert.Equal(t, http.StatusNotFound, serveRequest(l, http.MethodGet, "/oauth/callback?code=a&state=b").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serveRequest(l, http.MethodPost, "/custom/cb?code=a&state=b").Code)
	assert.False(t, l.Completed())

	assert.Equal(t, http.StatusOK, serveRequest(l, http.MethodGet, "/custom/cb?code=a&state=b").Code)
	assert.True(t, l.Completed())
}

func TestListener_ListenAndServe(t *testing.T) {
	l := NewListener(Options{Port: 0})

	callbackURL, err := l.Listen()
	require.NoError(t, err)
	assert.NotZero(t, l.Port())
	assert.True(t, strings.HasPrefix(callbackURL, "http://localhost:"))
	assert.True(t, strings.HasSuffix(callbackURL, "/oauth/callback"))

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- l.Serve(ctx) }()

	resp, err := http.Get(strings.Replace(callbackURL, "localhost", "127.0.0.1", 1) + "?code=abc&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "OAuth Success!")

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("expected callback to complete")
	}

	cancel()
	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}

	// Stop after shutdown is a no-op
	l.Stop()
}

func TestListener_ListenPortInUse(t *testing.T) {
	first := NewListener(Options{Port: 0})
	_, err := first.Listen()
	require.NoError(t, err)
	defer first.Stop()

	second := NewListener(Options{Port: first.Port()})
	_, err = second.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start callback listener")
}

func TestListener_ServeWithoutListen(t *testing.T) {
	l := NewListener(Options{})
	err := l.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call Listen first")
}

func TestListener_StopBeforeListen(t *testing.T) {
	l := NewListener(Options{})
	l.Stop()
	l.Stop()
}

func TestListener_StopEndsServe(t *testing.T) {
	l := NewListener(Options{Port: 0})
	_, err := l.Listen()
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() { serveErr <- l.Serve(context.Background()) }()

	// Give Serve a moment to enter the accept loop
	time.Sleep(50 * time.Millisecond)
	l.Stop()

	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
