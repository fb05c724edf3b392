package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lhelper/liblibai-client/pkg/auth"
	"github.com/lhelper/liblibai-client/pkg/settings"
)

// Configure command
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Save API keys",
	Long: `Stores the access key and secret key in the settings file. Other
settings in the file are kept.

Keys missing from the flags are read from stdin, one per line.

Example:
  liblib configure --access-key=AK --secret-key=SK
  printf 'AK\nSK\n' | liblib configure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		accessKey, _ := cmd.Flags().GetString("access-key")
		secretKey, _ := cmd.Flags().GetString("secret-key")

		if accessKey == "" || secretKey == "" {
			scanner := bufio.NewScanner(os.Stdin)
			if accessKey == "" && scanner.Scan() {
				accessKey = strings.TrimSpace(scanner.Text())
			}
			if secretKey == "" && scanner.Scan() {
				secretKey = strings.TrimSpace(scanner.Text())
			}
		}
		if accessKey == "" || secretKey == "" {
			return fmt.Errorf("both --access-key and --secret-key are required")
		}

		store, s, err := loadSettings()
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()

		if err := newSigner(store, s).Configure(ctx, accessKey, secretKey); err != nil {
			return fmt.Errorf("failed to save keys: %w", err)
		}

		if jsonOutput {
			return outputJSON(map[string]any{"saved": true, "path": store.Path()})
		}

		fmt.Printf("API keys saved to %s\n", store.Path())
		return nil
	},
}

func init() {
	configureCmd.Flags().String("access-key", "", "Access key")
	configureCmd.Flags().String("secret-key", "", "Secret key")
}

// Settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage the settings file",
}

// Settings set command
var settingsSetCmd = &cobra.Command{
	Use:   "set key=value [key=value ...]",
	Short: "Change settings",
	Long: `Writes settings to the settings file. Keys use the names of the file;
fields of ui_defaults are addressed as ui_defaults.<name>. Other settings
and unknown keys in the file are kept.

Example:
  liblib settings set proxy=http://127.0.0.1:7890 default_model=12345
  liblib settings set ui_defaults.width=768 auto_update_check=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kv, err := parseKeyValues(args)
		if err != nil {
			return err
		}

		store := settings.NewStore(getSettingsPath())

		ctx, cancel := requestContext()
		defer cancel()

		var saved settings.Settings
		err = store.Update(ctx, func(s *settings.Settings) error {
			for _, key := range sortedKeys(kv) {
				if err := s.Set(key, kv[key]); err != nil {
					return err
				}
			}
			saved = *s
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}

		if jsonOutput {
			return outputJSON(map[string]any{"saved": sortedKeys(kv), "path": store.Path()})
		}

		fmt.Printf("Settings saved to %s\n", store.Path())
		if saved.Proxy != "" {
			fmt.Printf("Proxy: %s\n", saved.Proxy)
		}
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsSetCmd)
}

// sortedKeys returns the keys of kv in order
func sortedKeys(kv map[string]string) []string {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// maskKey hides all but the first and last characters of a key
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return key[:2] + strings.Repeat("*", len(key)-4) + key[len(key)-2:]
}

// Status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration",
	Long:  "Shows the settings file, API keys (masked), base URL and proxy in use.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, s, err := loadSettings()
		if err != nil {
			return err
		}

		status := map[string]any{
			"settings":   store.Path(),
			"configured": s.Configured(),
			"access_key": maskKey(s.AccessKey),
			"base_url":   getBaseURL(),
			"proxy":      getProxy(s),
			"ui_defaults": map[string]any{
				"width":     s.UIDefaults.Width,
				"height":    s.UIDefaults.Height,
				"steps":     s.UIDefaults.Steps,
				"cfg_scale": s.UIDefaults.CFGScale,
				"sampler":   s.UIDefaults.Sampler,
			},
		}

		if jsonOutput {
			return outputJSON(status)
		}

		fmt.Printf("Settings: %s\n", store.Path())
		fmt.Printf("Configured: %v\n", s.Configured())
		if s.AccessKey != "" {
			fmt.Printf("Access Key: %s\n", maskKey(s.AccessKey))
		}
		fmt.Printf("Base URL: %s\n", getBaseURL())
		if proxy := getProxy(s); proxy != "" {
			fmt.Printf("Proxy: %s\n", proxy)
		}
		fmt.Printf("Defaults: %dx%d, %d steps, cfg %.1f, %s\n",
			s.UIDefaults.Width, s.UIDefaults.Height, s.UIDefaults.Steps, s.UIDefaults.CFGScale, s.UIDefaults.Sampler)
		if s.DefaultModel != "" {
			fmt.Printf("Default Model: %s\n", s.DefaultModel)
		}
		if s.DefaultWorkflow != "" {
			fmt.Printf("Default Workflow: %s\n", s.DefaultWorkflow)
		}
		return nil
	},
}

// Sign command
var signCmd = &cobra.Command{
	Use:   "sign [key=value ...]",
	Short: "Sign parameters",
	Long: `Signs the given parameters with the configured keys and prints the
signed query string. No request is sent.

Example:
  liblib sign task_id=abc123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseKeyValues(args)
		if err != nil {
			return err
		}

		store, s, err := loadSettings()
		if err != nil {
			return err
		}

		signed, err := newSigner(store, s).Sign(params)
		if err != nil {
			return describeError("signing failed", err)
		}

		if jsonOutput {
			return outputJSON(signed.Map())
		}

		fmt.Println(signed.Values().Encode())
		return nil
	},
}

// Verify URL command
var verifyURLCmd = &cobra.Command{
	Use:   "verify-url URL",
	Short: "Verify a signed URL",
	Long:  "Recomputes the signature of a signed URL with the configured secret key.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}

		_, s, err := loadSettings()
		if err != nil {
			return err
		}
		if s.SecretKey == "" {
			return fmt.Errorf("no secret key configured")
		}

		verr := auth.Verify(u.Query(), s.SecretKey)

		if jsonOutput {
			out := map[string]any{"valid": verr == nil}
			if verr != nil {
				out["error"] = verr.Error()
			}
			if err := outputJSON(out); err != nil {
				return err
			}
			return verr
		}

		if verr != nil {
			return fmt.Errorf("signature invalid: %w", verr)
		}
		fmt.Println("Signature valid")
		return nil
	},
}

// Ping command
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the connection",
	Long:  "Sends a signed request to check that the API is reachable and the keys are accepted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()

		if err := c.Ping(ctx); err != nil {
			return describeError("connection test failed", err)
		}

		if jsonOutput {
			return outputJSON(map[string]bool{"ok": true})
		}

		fmt.Println("Connection OK")
		return nil
	},
}
