package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"oauthcheck/pkg/logging"
	strutil "oauthcheck/pkg/strings"
)

const (
	// maxBodyBytes bounds how much of a backend response is read.
	maxBodyBytes = 1 << 20

	// bodyPreviewLength is how many characters of a body are shown to the user.
	bodyPreviewLength = 200

	// maxRedirects bounds same-origin redirects followed while replaying the callback.
	maxRedirects = 10

	// RequestIDHeader carries the run ID on every backend request.
	RequestIDHeader = "X-Request-ID"
)

// backendClient talks to the backend. Both clients share one cookie jar so the
// session cookie set while requesting the authorization URL (which holds the
// OAuth state on the backend) is presented when the callback is replayed.
type backendClient struct {
	// authorize never follows redirects: the redirect itself is the answer.
	authorize *http.Client
	// replay follows redirects only while they stay on the backend origin.
	replay *http.Client

	origin    *url.URL
	runID     string
	userAgent string
	timeout   time.Duration
}

func newBackendClient(backendURL, runID, userAgent string, timeout time.Duration, transport http.RoundTripper) (*backendClient, error) {
	origin, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", backendURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &backendClient{
		origin:    origin,
		runID:     runID,
		userAgent: userAgent,
		timeout:   timeout,
	}

	c.authorize = &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	c.replay = &http.Client{
		Transport:     transport,
		Jar:           jar,
		CheckRedirect: c.sameOriginRedirect,
	}

	return c, nil
}

// sameOriginRedirect follows redirects within the backend and hands back any
// redirect that leaves it, typically the redirect to the frontend.
func (c *backendClient) sameOriginRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !strings.EqualFold(req.URL.Scheme, c.origin.Scheme) || !strings.EqualFold(req.URL.Host, c.origin.Host) {
		logging.Debug("Flow", "Not following redirect off the backend to %s", req.URL.Redacted())
		return http.ErrUseLastResponse
	}
	c.decorate(req)
	return nil
}

func (c *backendClient) decorate(req *http.Request) {
	req.Header.Set(RequestIDHeader, c.runID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// response is a fully read backend response.
type response struct {
	StatusCode int
	Header     http.Header
	Location   string
	Body       string
	// URL is the URL of the final request, after any followed redirects.
	URL *url.URL
}

// get performs a GET and reads the body. Transport failures are returned as
// *ConnectionError.
func (c *backendClient) get(ctx context.Context, client *http.Client, target string) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", target, err)
	}
	c.decorate(req)

	logging.Debug("Flow", "GET %s", req.URL.Redacted())
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, ClassifyConnectionError(err, c.origin.String())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", target, err)
	}

	r := &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(body),
		URL:        resp.Request.URL,
	}
	if loc, err := resp.Location(); err == nil {
		r.Location = loc.String()
	}

	logging.Debug("Flow", "GET %s answered %d", req.URL.Redacted(), resp.StatusCode)
	return r, nil
}

// preview returns the first bodyPreviewLength characters of body.
func preview(body string) string {
	return strutil.Head(body, bodyPreviewLength)
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}
