package flow

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	testAuthCode      = "4/0AY0e-g7-test-code"
	sessionCookieName = "id"
)

// fakeProvider stands in for the OAuth provider's consent screen: it
// immediately redirects back to redirect_uri with a code and the state.
type fakeProvider struct {
	*httptest.Server
	// deny makes the provider redirect back with error=access_denied.
	deny atomic.Bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		redirect, err := url.Parse(q.Get("redirect_uri"))
		if err != nil || redirect.Host == "" {
			http.Error(w, "bad redirect_uri", http.StatusBadRequest)
			return
		}
		back := url.Values{}
		back.Set("state", q.Get("state"))
		if p.deny.Load() {
			back.Set("error", "access_denied")
			back.Set("error_description", "The user denied access")
		} else {
			back.Set("code", testAuthCode)
			back.Set("scope", "email profile openid")
		}
		redirect.RawQuery = back.Encode()
		http.Redirect(w, r, redirect.String(), http.StatusFound)
	}))
	t.Cleanup(p.Close)
	return p
}

// fakeBackend mimics the backend under test: /api/auth/google stores a state
// in a cookie session and redirects to the provider, /api/auth/google/callback
// verifies the state against the session.
type fakeBackend struct {
	*httptest.Server

	mu          sync.Mutex
	sessions    map[string]string
	requestIDs  []string
	redirectURI string
	providerURL string

	// authorizeHandler replaces the authorize endpoint when set.
	authorizeHandler http.HandlerFunc
	// authorizeStatus is the redirect status of the authorize endpoint, 302 when zero.
	authorizeStatus int
	// callbackHandler replaces the success response of the callback endpoint when set.
	callbackHandler http.HandlerFunc
	// frontendURL is where a completed callback redirects to.
	frontendURL string
}

func (b *fakeBackend) setAuthorizeHandler(h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorizeHandler = h
}

func (b *fakeBackend) setAuthorizeStatus(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorizeStatus = status
}

func (b *fakeBackend) setCallbackHandler(h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbackHandler = h
}

func (b *fakeBackend) setFrontendURL(u string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frontendURL = u
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		sessions:    map[string]string{},
		frontendURL: "http://frontend.invalid:3000",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/google", b.handleAuthorize)
	mux.HandleFunc("/api/auth/google/callback", b.handleCallback)
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<!DOCTYPE html><html><body><div id=\"root\"></div></body></html>")
	})

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) configure(providerURL, redirectURI string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providerURL = providerURL
	b.redirectURI = redirectURI
}

func (b *fakeBackend) recordRequestID(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requestIDs = append(b.requestIDs, r.Header.Get(RequestIDHeader))
}

func (b *fakeBackend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

func (b *fakeBackend) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	b.recordRequestID(r)

	b.mu.Lock()
	if h := b.authorizeHandler; h != nil {
		b.mu.Unlock()
		h(w, r)
		return
	}
	cfg := oauth2.Config{
		ClientID:     "test-client.apps.googleusercontent.com",
		ClientSecret: "test-secret",
		RedirectURL:  b.redirectURI,
		Scopes:       []string{"email", "profile", "openid"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  b.providerURL + "/o/oauth2/auth",
			TokenURL: b.providerURL + "/token",
		},
	}
	status := http.StatusFound
	if b.authorizeStatus != 0 {
		status = b.authorizeStatus
	}
	sessionID := uuid.NewString()
	state := uuid.NewString()
	b.sessions[sessionID] = state
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: sessionID, Path: "/", HttpOnly: true})
	http.Redirect(w, r, cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), status)
}

func (b *fakeBackend) handleCallback(w http.ResponseWriter, r *http.Request) {
	b.recordRequestID(r)

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		writeJSONError(w, "Invalid OAuth state", "AUTH_INVALID_STATE")
		return
	}

	b.mu.Lock()
	stored, ok := b.sessions[cookie.Value]
	custom := b.callbackHandler
	frontendURL := b.frontendURL
	b.mu.Unlock()

	if !ok || stored != r.URL.Query().Get("state") {
		writeJSONError(w, "OAuth state mismatch", "AUTH_INVALID_STATE")
		return
	}
	if r.URL.Query().Get("code") != testAuthCode {
		writeJSONError(w, "Invalid authorization code", "OAUTH_PROVIDER_ERROR")
		return
	}

	if custom != nil {
		custom(w, r)
		return
	}
	http.Redirect(w, r, frontendURL+"/dashboard?user_id=d290f1ee-6c54-4b01-90e6-d701748f0851&success=true", http.StatusFound)
}

func writeJSONError(w http.ResponseWriter, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, `{"error":%q,"code":%q}`, message, code)
}
