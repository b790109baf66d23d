package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"oauthcheck/internal/browser"
	"oauthcheck/internal/callback"
	"oauthcheck/internal/config"
	"oauthcheck/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/sync/errgroup"
)

// Options tunes a Driver. The zero value prints to io.Discard and opens the
// real browser.
type Options struct {
	// Out receives the step-by-step progress output.
	Out io.Writer

	// Quiet suppresses progress output and the spinner.
	Quiet bool

	// OpenBrowser opens the authorization URL. Defaults to browser.Open.
	OpenBrowser func(url string) error

	// Transport is used for backend requests. Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	// RunID is sent as X-Request-ID. A random UUID is used when empty.
	RunID string

	// UserAgent is sent on backend requests.
	UserAgent string
}

// Driver runs one authorization code flow against the backend.
type Driver struct {
	cfg      config.Config
	opts     Options
	client   *backendClient
	listener *callback.Listener
	bound    bool
}

// NewDriver creates a driver for cfg. The configuration is expected to be
// validated already; a CallbackPort of 0 binds a free port.
func NewDriver(cfg config.Config, opts Options) (*Driver, error) {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = browser.Open
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	client, err := newBackendClient(cfg.BackendBase(), opts.RunID, opts.UserAgent, cfg.RequestTimeout, opts.Transport)
	if err != nil {
		return nil, err
	}

	return &Driver{
		cfg:    cfg,
		opts:   opts,
		client: client,
		listener: callback.NewListener(callback.Options{
			Host: cfg.CallbackHost,
			Port: cfg.CallbackPort,
			Path: cfg.CallbackPath,
		}),
	}, nil
}

// RunID identifies this run in backend logs via X-Request-ID.
func (d *Driver) RunID() string {
	return d.opts.RunID
}

// Listener exposes the callback listener, mostly for inspection after Run.
func (d *Driver) Listener() *callback.Listener {
	return d.listener
}

// Listen binds the callback listener and returns the callback URL. Run calls
// it when needed; calling it earlier surfaces port conflicts before anything
// else happens.
func (d *Driver) Listen() (string, error) {
	if d.bound {
		return d.listener.CallbackURL(), nil
	}
	callbackURL, err := d.listener.Listen()
	if err != nil {
		return "", err
	}
	d.bound = true
	return callbackURL, nil
}

// Run executes the flow: authorize, browser, wait, replay. It always tears
// the callback listener down before returning. The report is returned even
// when the flow fails.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	report := newReport(d.opts.RunID)
	defer report.finish()

	// A bind failure happens before any step runs; every step ends skipped
	// and the error carries the reason.
	callbackURL, err := d.Listen()
	if err != nil {
		d.printf("%s\n", text.FgRed.Sprintf("❌ %v", err))
		return report, err
	}
	defer d.listener.Stop()
	report.CallbackURL = callbackURL

	d.printf("\n🌐 Started temporary callback listener on %s\n", callbackURL)
	logging.Info("Flow", "Run %s started, callback listener on %s", d.opts.RunID, callbackURL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.listener.Serve(gctx)
	})

	var flowErr error
	g.Go(func() error {
		defer cancel()
		flowErr = d.drive(gctx, report)
		return nil
	})

	if err := g.Wait(); err != nil {
		logging.Error("Flow", err, "Callback listener failed")
		if flowErr == nil || errors.Is(flowErr, context.Canceled) {
			return report, err
		}
	}

	d.printf("\n🛑 Callback listener stopped\n")
	return report, flowErr
}

func (d *Driver) drive(ctx context.Context, report *Report) error {
	authURL, err := d.authorize(ctx, report)
	if err != nil {
		return err
	}

	d.launchBrowser(authURL, report)

	result, err := d.waitForCallback(ctx, report)
	if err != nil {
		return err
	}

	return d.replay(ctx, result, report)
}

// authorize requests the authorization URL. The backend must answer with a
// redirect carrying a Location header.
func (d *Driver) authorize(ctx context.Context, report *Report) (string, error) {
	target := d.cfg.AuthorizeURL()
	d.printf("\n📋 Step 1: Getting authorization URL from backend...\n")

	resp, err := d.client.get(ctx, d.client.authorize, target)
	if err != nil {
		report.mark(StepAuthorize, StepFailed, err.Error())
		d.printf("%s\n", text.FgRed.Sprintf("❌ Could not reach the backend at %s: %v", d.cfg.BackendBase(), errorReason(err)))
		return "", err
	}

	d.printf("Response status: %d\n", resp.StatusCode)

	// Any 3xx with a Location is accepted, not only 302: backends answering
	// 303 or 307 still hand over the authorization URL.
	if !isRedirect(resp.StatusCode) || resp.Location == "" {
		statusErr := &UnexpectedStatusError{
			Step:        StepAuthorize,
			URL:         target,
			StatusCode:  resp.StatusCode,
			Detail:      "expected a redirect with a Location header",
			BodyPreview: preview(resp.Body),
		}
		report.mark(StepAuthorize, StepFailed, statusErr.Error())
		d.printf("%s\n", text.FgRed.Sprintf("❌ Failed to get authorization URL. Status: %d", resp.StatusCode))
		if statusErr.BodyPreview != "" {
			d.printf("Response: %s\n", statusErr.BodyPreview)
		}
		return "", statusErr
	}

	report.AuthorizationURL = resp.Location
	d.printf("%s\n", text.FgGreen.Sprintf("✅ Got authorization URL: %s", resp.Location))

	if warning := redirectURIMismatch(resp.Location, report.CallbackURL); warning != "" {
		report.mark(StepAuthorize, StepWarning, warning)
		d.printf("%s\n", text.FgYellow.Sprint("⚠️  "+warning))
		logging.Warn("Flow", "%s", warning)
	} else {
		report.mark(StepAuthorize, StepOK, fmt.Sprintf("%d redirect", resp.StatusCode))
	}

	return resp.Location, nil
}

// launchBrowser opens the authorization URL. A failure is not terminal: the
// user can still open the URL by hand.
func (d *Driver) launchBrowser(authURL string, report *Report) {
	d.printf("\n🔓 Step 2: Opening browser for authorization...\n")

	if !d.cfg.OpenBrowser {
		report.mark(StepBrowser, StepSkipped, "browser launch disabled")
		d.printf("Open this URL in your browser to continue:\n  %s\n", authURL)
		return
	}

	if err := d.opts.OpenBrowser(authURL); err != nil {
		logging.Warn("Browser", "Could not open browser: %v", err)
		report.mark(StepBrowser, StepWarning, err.Error())
		d.printf("%s\n", text.FgYellow.Sprintf("⚠️  Could not open a browser (%v)", err))
		d.printf("Open this URL in your browser to continue:\n  %s\n", authURL)
		return
	}

	report.mark(StepBrowser, StepOK, "")
	d.printf("Please complete the OAuth flow in your browser...\n")
}

// waitForCallback polls the listener until it accepted a callback, the
// provider reported an error, or the timeout elapses.
func (d *Driver) waitForCallback(ctx context.Context, report *Report) (callback.Result, error) {
	d.printf("\n⏳ Step 3: Waiting for OAuth callback...\n")

	var s *spinner.Spinner
	if !d.opts.Quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(d.opts.Out))
		s.Suffix = fmt.Sprintf(" Waiting up to %s for the browser to return...", d.cfg.Timeout)
		s.Start()
		defer s.Stop()
	}

	deadline := time.NewTimer(d.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

wait:
	for {
		if d.listener.Completed() {
			break
		}

		select {
		case <-ticker.C:
		case <-d.listener.Failed():
			if d.listener.Completed() {
				break wait
			}
			perr := d.listener.ProviderError()
			report.mark(StepWait, StepFailed, perr.Error())
			stopSpinner(s)
			d.printf("%s\n", text.FgRed.Sprintf("❌ Authorization failed: %v", perr))
			return callback.Result{}, perr
		case <-deadline.C:
			timeoutErr := &CallbackTimeoutError{Timeout: d.cfg.Timeout}
			report.mark(StepWait, StepFailed, timeoutErr.Error())
			stopSpinner(s)
			d.printf("%s\n", text.FgYellow.Sprint("⏰ Timeout waiting for OAuth callback or user cancelled"))
			return callback.Result{}, timeoutErr
		case <-ctx.Done():
			report.mark(StepWait, StepFailed, ctx.Err().Error())
			return callback.Result{}, ctx.Err()
		}
	}

	stopSpinner(s)

	result, _ := d.listener.Result()
	report.Callback = &result
	report.mark(StepWait, StepOK, "")

	d.printf("\n%s\n", text.FgGreen.Sprint("✅ Received OAuth callback!"))
	d.printf("Code: %s\n", result.Code)
	d.printf("State: %s\n", result.State)

	return result, nil
}

// replay sends the captured code and state to the backend's callback
// endpoint and classifies the answer.
func (d *Driver) replay(ctx context.Context, result callback.Result, report *Report) error {
	d.printf("\n📞 Step 4: Testing callback endpoint...\n")

	params := url.Values{}
	params.Set("code", result.Code)
	params.Set("state", result.State)
	target := d.cfg.CallbackReplayURL() + "?" + params.Encode()

	logging.Debug("Flow", "Callback URL: %s", d.cfg.CallbackReplayURL())
	logging.Debug("Flow", "Params: code=%s state=%s", logging.TruncateValue(result.Code), logging.TruncateValue(result.State))

	resp, err := d.client.get(ctx, d.client.replay, target)
	if err != nil {
		report.mark(StepReplay, StepFailed, err.Error())
		d.printf("%s\n", text.FgRed.Sprintf("❌ Could not reach the backend at %s: %v", d.cfg.BackendBase(), errorReason(err)))
		return err
	}

	outcome, failure := ClassifyCallbackResponse(resp.StatusCode, resp.Location, resp.Body)
	if resp.URL != nil {
		outcome.FinalURL = resp.URL.String()
	}
	report.Outcome = outcome

	if failure != nil {
		report.mark(StepReplay, StepFailed, failure.Error())
		d.printOutcomeFailure(outcome, failure)
		return failure
	}

	report.mark(StepReplay, StepOK, string(outcome.Kind))
	d.printOutcomeSuccess(outcome)
	return nil
}

func (d *Driver) printOutcomeSuccess(outcome *Outcome) {
	switch outcome.Kind {
	case OutcomeRedirect:
		d.printf("%s\n", text.FgGreen.Sprintf("✅ OAuth flow completed! Redirect to: %s", outcome.Location))
		if outcome.UserID != "" {
			d.printf("👤 User ID: %s\n", outcome.UserID)
		}
		if outcome.SuccessFlag {
			d.printf("%s\n", text.FgGreen.Sprint("🎉 OAuth authentication successful!"))
		}
	case OutcomeFrontendPage:
		d.printf("%s\n", text.FgGreen.Sprint("✅ OAuth flow completed! Successfully redirected to frontend application"))
		d.printf("%s\n", text.FgGreen.Sprint("🎉 OAuth authentication successful!"))
	}
}

func (d *Driver) printOutcomeFailure(outcome *Outcome, failure error) {
	var cbErr *CallbackFailedError
	errors.As(failure, &cbErr)

	switch outcome.Kind {
	case OutcomeUnexpectedBody:
		d.printf("%s\n", text.FgRed.Sprintf("❌ Unexpected 200 response: %s", outcome.BodyPreview))
	case OutcomeRedirect:
		d.printf("%s\n", text.FgRed.Sprintf("❌ Backend redirected to %s with error %q", outcome.Location, outcome.Error))
	default:
		d.printf("%s\n", text.FgRed.Sprintf("❌ Callback failed with status: %d", outcome.StatusCode))
		if cbErr != nil && cbErr.BackendError != "" {
			d.printf("Backend error: %s (code %s)\n", cbErr.BackendError, cbErr.BackendCode)
		}
		if outcome.BodyPreview != "" {
			d.printf("Response: %s\n", outcome.BodyPreview)
		}
	}
}

func (d *Driver) printf(format string, args ...interface{}) {
	if d.opts.Quiet {
		return
	}
	fmt.Fprintf(d.opts.Out, format, args...)
}

func stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}

// errorReason unwraps a ConnectionError to its cause for display.
func errorReason(err error) error {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s: %w", connErr.Type, connErr.Reason)
	}
	return err
}

// redirectURIMismatch returns a warning when the provider would redirect
// somewhere other than the local callback listener.
func redirectURIMismatch(authURL, callbackURL string) string {
	u, err := url.Parse(authURL)
	if err != nil {
		return ""
	}
	redirectURI := u.Query().Get("redirect_uri")
	if redirectURI == "" || redirectURI == callbackURL {
		return ""
	}
	return fmt.Sprintf("the backend's redirect_uri is %s but the callback listener is at %s; set OAUTH_REDIRECT_URL on the backend to %s", redirectURI, callbackURL, callbackURL)
}
