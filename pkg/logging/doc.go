// Package logging provides subsystem-tagged structured logging for oauthcheck.
//
// It is a thin layer over the standard slog package. Every entry carries a
// subsystem attribute so diagnostic output can be filtered by component:
//
//   - **CLI**: command setup and exit handling
//   - **Config**: configuration loading and validation
//   - **Callback**: the temporary local callback listener
//   - **Flow**: the authorization code flow driver
//   - **Browser**: browser launching
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Flow", "Requesting authorization URL from %s", url)
//	logging.Error("Callback", err, "Failed to serve callback listener")
//
// Diagnostic logs are separate from the user-facing step output that the
// cmd package writes to stdout. Authorization codes and state tokens must
// only be logged through TruncateValue.
package logging
