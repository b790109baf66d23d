// Package browser opens URLs in the user's default web browser.
package browser

import (
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"oauthcheck/pkg/logging"
)

// browserLauncher starts the opener command. Tests replace it so no browser
// is ever opened.
var browserLauncher = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// Open opens the specified URL in the default web browser.
// It supports Linux, macOS, and Windows. Only http and https URLs are opened.
// The command is started but not waited for.
func Open(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL: missing host in %q", rawURL)
	}

	cmd, err := openerCommand(runtime.GOOS, u.String())
	if err != nil {
		return err
	}

	logging.Debug("Browser", "Launching %s", cmd.Path)
	if err := browserLauncher(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

func openerCommand(goos, target string) (*exec.Cmd, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", target), nil
	case "darwin":
		return exec.Command("open", target), nil
	case "windows":
		// rundll32 receives the URL as one argument; cmd.exe would split it at '&'.
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
