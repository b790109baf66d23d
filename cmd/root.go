package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"oauthcheck/internal/callback"
	"oauthcheck/internal/config"
	"oauthcheck/internal/flow"
	"oauthcheck/pkg/logging"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates the backend completed the flow.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (invalid configuration, listener failure).
	ExitCodeError = 1
	// ExitCodeBackendUnreachable indicates the backend could not be reached.
	ExitCodeBackendUnreachable = 2
	// ExitCodeFlowFailed indicates the backend or provider did not complete the flow.
	ExitCodeFlowFailed = 3
	// ExitCodeTimeout indicates no callback arrived before the timeout.
	ExitCodeTimeout = 4
)

// Root command flags
var (
	configFile string
	backendURL string
	port       int
	timeout    time.Duration
	noBrowser  bool
	quiet      bool
	debug      bool
	logLevel   string
)

// rootCmd runs the OAuth flow check when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "oauthcheck",
	Short: "Drive an OAuth authorization code flow against a local backend",
	Long: `oauthcheck tests a backend's OAuth login without a frontend.

It asks the backend for an authorization URL, opens it in your browser,
catches the provider's redirect on a temporary local listener and replays
the code and state against the backend's callback endpoint to check that
the backend completes the flow.

The backend must use the listener as its redirect URL, by default:
  OAUTH_REDIRECT_URL=http://localhost:8090/oauth/callback

Examples:
  oauthcheck                                  # Check http://localhost:8080
  oauthcheck --backend http://localhost:9000  # Check another backend
  oauthcheck --no-browser                     # Print the URL instead of opening it
  oauthcheck --timeout 5m                     # Wait longer for the consent screen`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "oauthcheck version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var connErr *flow.ConnectionError
	if errors.As(err, &connErr) {
		return ExitCodeBackendUnreachable
	}

	var timeoutErr *flow.CallbackTimeoutError
	if errors.As(err, &timeoutErr) {
		return ExitCodeTimeout
	}

	var statusErr *flow.UnexpectedStatusError
	var callbackErr *flow.CallbackFailedError
	var providerErr *callback.ProviderError
	if errors.As(err, &statusErr) || errors.As(err, &callbackErr) || errors.As(err, &providerErr) {
		return ExitCodeFlowFailed
	}

	return ExitCodeError
}

func init() {
	// RunE is assigned here rather than in the literal to avoid an initialization cycle
	// (runCheck -> GetVersion -> rootCmd).
	rootCmd.RunE = runCheck

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging on stderr (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Diagnostic log level on stderr: debug, info, warn or error")

	rootCmd.Flags().StringVar(&backendURL, "backend", config.DefaultBackendURL, "Base URL of the backend under test")
	rootCmd.Flags().IntVar(&port, "port", config.DefaultCallbackPort, "Port of the local callback listener")
	rootCmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "How long to wait for the OAuth callback")
	rootCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output; only the exit code reports the result")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// initLogging routes diagnostic logs to stderr so stdout carries only the run output.
func initLogging(cmd *cobra.Command) {
	level := logging.ParseLevel(logLevel)
	if debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
}

// loadEffectiveConfig layers explicitly set flags over the file and environment configuration.
func loadEffectiveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.BackendURL = backendURL
	}
	if flags.Changed("port") {
		cfg.CallbackPort = port
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("no-browser") {
		cfg.OpenBrowser = !noBrowser
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	initLogging(cmd)

	cfg, err := loadEffectiveConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !quiet {
		fmt.Fprintf(out, "🚀 %s\n", text.Bold.Sprintf("OAuth flow check (%s)", cfg.Provider))
		fmt.Fprintln(out, "========================================")
		fmt.Fprintf(out, "🔧 Setting up OAuth test...\n")
		fmt.Fprintf(out, "Make sure your OAUTH_REDIRECT_URL environment variable is set to: %s\n", cfg.CallbackURL())
		fmt.Fprintf(out, "Make sure your backend is running on: %s\n", cfg.BackendBase())
	}

	driver, err := flow.NewDriver(cfg, flow.Options{
		Out:       out,
		Quiet:     quiet,
		UserAgent: "oauthcheck/" + GetVersion(),
	})
	if err != nil {
		return err
	}
	logging.Debug("CLI", "Starting run %s", driver.RunID())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	report, runErr := driver.Run(ctx)
	if !quiet && report != nil {
		fmt.Fprintln(out)
		renderReport(out, report)
	}

	return runErr
}
