// Package config provides configuration for oauthcheck.
//
// The defaults reproduce the values the tool was always run with: a backend
// on http://localhost:8080, a callback listener on port 8090 at
// /oauth/callback, and a two minute wait for the user to finish the consent
// screen. The backend must be configured with CallbackURL() as its OAuth
// redirect URL.
//
// # Layering
//
// LoadConfig applies, in order:
//   - GetDefaultConfig()
//   - an optional YAML file (--config)
//   - OAUTHCHECK_* environment variables (OAUTHCHECK_BACKEND_URL, OAUTHCHECK_TIMEOUT, ...)
//
// Command line flags are applied last by the cmd package.
//
// # Example
//
//	backend_url: http://localhost:8080
//	callback_port: 8090
//	timeout: 3m
package config
