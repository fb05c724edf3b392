// Package main provides a CLI for the liblibAI image generation API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/lhelper/liblibai-client/pkg/auth"
	"github.com/lhelper/liblibai-client/pkg/client"
	"github.com/lhelper/liblibai-client/pkg/metrics"
	"github.com/lhelper/liblibai-client/pkg/settings"
)

var (
	// Global flags
	settingsPath string
	apiURL       string
	proxyURL     string
	timeout      time.Duration
	jsonOutput   bool
	metricsAddr  string
	traceEnabled bool
	rateLimit    float64

	// Set up by the root command for the duration of a run
	apiMetrics *metrics.HTTPMetrics
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "liblib",
	Short: "liblibAI API CLI",
	Long: `A command-line client for the liblibAI image generation API.

This tool allows you to:
  - Store and check API keys and settings
  - Sign parameters and verify signed URLs
  - Submit text-to-image, image-to-image and Star-3 Alpha jobs
  - Poll task results
  - Browse models, presets and workflow templates

Environment variables:
  LIBLIB_URL        - API base URL (default: https://api.liblibai.com/api/v2/)
  LIBLIB_SETTINGS   - Settings file (default: liblibai_helper.json)
  LIBLIB_PROXY      - Proxy for HTTP and HTTPS traffic
  LIBLIB_ACCESS_KEY - Access key, overrides the settings file
  LIBLIB_SECRET_KEY - Secret key, overrides the settings file`,
	SilenceUsage:      true,
	PersistentPreRunE: setupTelemetry,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Settings file (or LIBLIB_SETTINGS env)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "", "API base URL (default: https://api.liblibai.com/api/v2/)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "Proxy URL (or LIBLIB_PROXY env, or the settings file)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "Print OpenTelemetry spans for API requests to stderr")
	rootCmd.PersistentFlags().Float64Var(&rateLimit, "rate", 0, "Maximum requests per second (0 = unlimited)")

	goflags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(goflags)
	rootCmd.PersistentFlags().AddGoFlagSet(goflags)

	cobra.OnFinalize(shutdownTelemetry)

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyURLCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(txt2imgCmd)
	rootCmd.AddCommand(img2imgCmd)
	rootCmd.AddCommand(star3Cmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(workflowsCmd)
	rootCmd.AddCommand(runWorkflowCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(openapiCmd)
}

// getBaseURL returns the API base URL from flags or environment
func getBaseURL() string {
	if apiURL != "" {
		return apiURL
	}
	if url := os.Getenv("LIBLIB_URL"); url != "" {
		return url
	}
	return client.DefaultBaseURL
}

// getSettingsPath returns the settings file from flags or environment
func getSettingsPath() string {
	if settingsPath != "" {
		return settingsPath
	}
	if path := os.Getenv("LIBLIB_SETTINGS"); path != "" {
		return path
	}
	return settings.DefaultFileName
}

// getProxy returns the proxy from flags, environment or settings
func getProxy(s settings.Settings) string {
	if proxyURL != "" {
		return proxyURL
	}
	if proxy := os.Getenv("LIBLIB_PROXY"); proxy != "" {
		return proxy
	}
	return s.Proxy
}

// loadSettings reads the settings file and applies key overrides from the
// environment. A malformed file is reported and the defaults are used.
func loadSettings() (*settings.Store, settings.Settings, error) {
	store := settings.NewStore(getSettingsPath())

	s, err := store.Load()
	if err != nil {
		if !errors.Is(err, settings.ErrMalformed) {
			return nil, s, fmt.Errorf("failed to load settings: %w", err)
		}
		klog.ErrorS(err, "Ignoring settings file", "path", store.Path())
	}

	override := settings.Settings{
		AccessKey: os.Getenv("LIBLIB_ACCESS_KEY"),
		SecretKey: os.Getenv("LIBLIB_SECRET_KEY"),
	}
	if err := settings.Merge(&s, override); err != nil {
		return nil, s, err
	}

	return store, s, nil
}

// newSigner creates a signer holding the configured keys that saves new
// keys to the settings file
func newSigner(store *settings.Store, s settings.Settings) *auth.Signer {
	return auth.NewSigner(
		auth.Credentials{AccessKey: s.AccessKey, SecretKey: s.SecretKey},
		auth.WithPersister(store),
	)
}

// clientOptions returns the client options selected by the global flags
func clientOptions(s settings.Settings) []client.Option {
	opts := []client.Option{
		client.WithBaseURL(getBaseURL()),
		client.WithTimeout(timeout),
		client.WithProxy(getProxy(s)),
	}
	if apiMetrics != nil {
		opts = append(opts, client.WithMetrics(apiMetrics))
	}
	if traceEnabled {
		opts = append(opts, client.WithTracing())
	}
	if rateLimit > 0 {
		opts = append(opts, client.WithRateLimit(rateLimit, 1))
	}
	return opts
}

// newClient creates a new API client from the settings file and flags
func newClient() (*client.Client, settings.Settings, error) {
	store, s, err := loadSettings()
	if err != nil {
		return nil, s, err
	}

	c, err := client.New(newSigner(store, s), clientOptions(s)...)
	if err != nil {
		return nil, s, fmt.Errorf("failed to create client: %w", err)
	}
	return c, s, nil
}

// outputJSON prints the value as JSON
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// describeError turns client errors into messages for the terminal
func describeError(action string, err error) error {
	switch {
	case client.IsConfigurationError(err):
		return fmt.Errorf("%s: %w (run 'liblib configure' first)", action, err)
	case client.IsTimeout(err):
		return fmt.Errorf("%s: request timed out: %w", action, err)
	case client.StatusCode(err) == http.StatusUnauthorized || client.StatusCode(err) == http.StatusForbidden:
		return fmt.Errorf("%s: authentication failed: %w", action, err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

// parseKeyValues parses key=value arguments
func parseKeyValues(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q (want key=value)", arg)
		}
		out[k] = v
	}
	return out, nil
}

// requestContext returns a context bounded by the request timeout
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
