package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds everything a single oauthcheck run needs.
type Config struct {
	// BackendURL is the base URL of the backend under test.
	BackendURL string `yaml:"backend_url" env:"BACKEND_URL"`

	// Provider is the OAuth provider path segment, e.g. /api/auth/google.
	Provider string `yaml:"provider" env:"PROVIDER"`

	// CallbackHost is the host name used in the local callback URL.
	// The listener itself always binds the loopback interface.
	CallbackHost string `yaml:"callback_host" env:"CALLBACK_HOST"`

	// CallbackPort is the port of the local callback listener.
	CallbackPort int `yaml:"callback_port" env:"CALLBACK_PORT"`

	// CallbackPath is the path the provider redirects to.
	CallbackPath string `yaml:"callback_path" env:"CALLBACK_PATH"`

	// Timeout bounds the wait for the provider callback.
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`

	// PollInterval is how often the wait loop checks for the callback.
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`

	// RequestTimeout bounds each outgoing request to the backend.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	// OpenBrowser controls whether the authorization URL is opened automatically.
	OpenBrowser bool `yaml:"open_browser" env:"OPEN_BROWSER"`
}

// BackendBase returns the backend URL without a trailing slash.
func (c Config) BackendBase() string {
	return strings.TrimRight(c.BackendURL, "/")
}

// AuthorizeURL is the backend endpoint that answers with a redirect to the provider.
func (c Config) AuthorizeURL() string {
	return fmt.Sprintf("%s/api/auth/%s", c.BackendBase(), c.Provider)
}

// CallbackReplayURL is the backend endpoint the captured code and state are replayed against.
func (c Config) CallbackReplayURL() string {
	return c.AuthorizeURL() + "/callback"
}

// CallbackURL is the redirect URL the backend must be configured with.
func (c Config) CallbackURL() string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(c.CallbackHost, strconv.Itoa(c.CallbackPort)), c.CallbackPath)
}
