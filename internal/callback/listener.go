package callback

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"oauthcheck/pkg/logging"

	"github.com/gorilla/mux"
)

// DefaultPath is the path the provider redirects the browser to.
const DefaultPath = "/oauth/callback"

// shutdownTimeout bounds graceful shutdown of the listener.
const shutdownTimeout = 5 * time.Second

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	successTemplate = template.Must(template.New("success").Parse(callbackSuccessHTML))
	errorTemplate   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// Result is what an accepted callback carries. Code and State are always set together.
type Result struct {
	// Code is the authorization code issued by the provider.
	Code string

	// State is the opaque anti-forgery token the backend generated.
	State string
}

// ProviderError is recorded when the provider redirects back with an OAuth
// error instead of an authorization code, e.g. when the user denies consent.
type ProviderError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider returned %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("provider returned %s", e.Code)
}

// Options configures a Listener.
type Options struct {
	// Host is the host name used in the callback URL. The listener always
	// binds the loopback interface regardless of this value.
	Host string

	// Port to bind. 0 picks a free port.
	Port int

	// Path to accept callbacks on. Defaults to DefaultPath.
	Path string
}

// Listener is a temporary local HTTP server that captures a single OAuth
// redirect. The HTTP handler is the only writer of the captured values and
// the flow driver the only reader.
type Listener struct {
	opts     Options
	router   *mux.Router
	server   *http.Server
	listener net.Listener

	mu          sync.Mutex
	result      *Result
	providerErr *ProviderError

	done     chan struct{}
	failed   chan struct{}
	stopOnce sync.Once
}

// NewListener creates a listener. Call Listen then Serve to start it.
func NewListener(opts Options) *Listener {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}

	l := &Listener{
		opts:   opts,
		done:   make(chan struct{}),
		failed: make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc(opts.Path, l.handleCallback).Methods(http.MethodGet)
	l.router = r

	return l
}

// Handler returns the HTTP handler that serves the callback path.
func (l *Listener) Handler() http.Handler {
	return l.router
}

// Listen binds the callback port on the loopback interface and returns the
// callback URL the backend must redirect to.
func (l *Listener) Listen() (string, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(l.opts.Port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback listener on %s: %w", addr, err)
	}

	l.listener = ln
	l.opts.Port = ln.Addr().(*net.TCPAddr).Port
	l.server = &http.Server{
		Handler:           l.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Debug("Callback", "Listening on %s", ln.Addr())
	return l.CallbackURL(), nil
}

// Serve serves callbacks until ctx is done or Stop is called. It returns nil
// on a clean shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	if l.server == nil {
		return errors.New("callback listener is not bound, call Listen first")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.server.Serve(l.listener)
	}()

	select {
	case <-ctx.Done():
		l.Stop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("callback listener failed: %w", err)
	}
}

// Stop shuts the listener down. It is safe to call more than once and
// before Listen.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		if l.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = l.server.Shutdown(ctx)
		}
		if l.listener != nil {
			_ = l.listener.Close()
		}
		logging.Debug("Callback", "Callback listener stopped")
	})
}

// CallbackURL returns the URL the provider must redirect to.
func (l *Listener) CallbackURL() string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(l.opts.Host, strconv.Itoa(l.opts.Port)), l.opts.Path)
}

// Port returns the bound port, or the configured one before Listen.
func (l *Listener) Port() int {
	return l.opts.Port
}

// Completed reports whether a callback carrying code and state was accepted.
func (l *Listener) Completed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Done is closed once a callback carrying code and state was accepted.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Failed is closed once the provider redirected back with an OAuth error.
func (l *Listener) Failed() <-chan struct{} {
	return l.failed
}

// Result returns the captured code and state.
func (l *Listener) Result() (Result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.result == nil {
		return Result{}, false
	}
	return *l.result, true
}

// ProviderError returns the OAuth error the provider redirected with, if any.
func (l *Listener) ProviderError() *ProviderError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.providerErr
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if code == "" || state == "" {
		l.rejectCallback(w, query.Get("error"), query.Get("error_description"))
		return
	}

	l.mu.Lock()
	if l.result != nil {
		l.mu.Unlock()
		logging.Warn("Callback", "Ignoring additional callback, one was already accepted")
		l.renderError(w, "Callback already processed", "", "")
		return
	}
	l.result = &Result{Code: code, State: state}
	l.mu.Unlock()

	logging.Info("Callback", "Received OAuth callback (code=%s, state=%s)",
		logging.TruncateValue(code), logging.TruncateValue(state))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := successTemplate.Execute(w, nil); err != nil {
		logging.Error("Callback", err, "Failed to render success page")
	}

	close(l.done)
}

// rejectCallback answers a callback without code or state. Nothing is stored,
// except that an OAuth error from the provider is recorded once.
func (l *Listener) rejectCallback(w http.ResponseWriter, oauthErr, description string) {
	if oauthErr == "" {
		logging.Warn("Callback", "Rejected callback without code or state")
		l.renderError(w, "Missing code or state parameter", "", "")
		return
	}

	l.mu.Lock()
	recorded := l.result == nil && l.providerErr == nil
	if recorded {
		l.providerErr = &ProviderError{Code: oauthErr, Description: description}
	}
	l.mu.Unlock()

	logging.Warn("Callback", "Provider redirected with error %s: %s", oauthErr, description)
	l.renderError(w, "Authorization failed", oauthErr, description)

	if recorded {
		close(l.failed)
	}
}

func (l *Listener) renderError(w http.ResponseWriter, title, oauthErr, description string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)

	data := map[string]string{
		"Title":       title,
		"Error":       oauthErr,
		"Description": description,
	}
	if err := errorTemplate.Execute(w, data); err != nil {
		logging.Error("Callback", err, "Failed to render error page")
	}
}
