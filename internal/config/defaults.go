package config

import "time"

const (
	// DefaultBackendURL is where the backend is expected to run locally.
	DefaultBackendURL = "http://localhost:8080"

	// DefaultProvider is the only provider path the backend exposes.
	DefaultProvider = "google"

	// DefaultCallbackHost is the host used in the callback URL.
	DefaultCallbackHost = "localhost"

	// DefaultCallbackPort is the port of the temporary callback listener.
	DefaultCallbackPort = 8090

	// DefaultCallbackPath is the path the provider redirects to.
	DefaultCallbackPath = "/oauth/callback"

	// DefaultTimeout is how long to wait for the user to finish the consent screen.
	DefaultTimeout = 120 * time.Second

	// DefaultPollInterval is how often the wait loop checks for the callback.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultRequestTimeout bounds a single backend request.
	DefaultRequestTimeout = 30 * time.Second

	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "OAUTHCHECK_"
)

// GetDefaultConfig returns the configuration used when nothing is overridden.
func GetDefaultConfig() Config {
	return Config{
		BackendURL:     DefaultBackendURL,
		Provider:       DefaultProvider,
		CallbackHost:   DefaultCallbackHost,
		CallbackPort:   DefaultCallbackPort,
		CallbackPath:   DefaultCallbackPath,
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		OpenBrowser:    true,
	}
}
