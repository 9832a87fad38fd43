package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"openinterface/internal/config"
	"openinterface/internal/security"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// boolSettings are stored as JSON booleans rather than strings.
var boolSettings = map[string]bool{
	config.KeyPlayDingOnCompletion: true,
}

var knownSettings = []string{
	config.KeyModel,
	config.KeyBaseURL,
	config.KeyAPIKey,
	config.KeyCustomInstructions,
	config.KeyDefaultBrowser,
	config.KeyPlayDingOnCompletion,
	config.KeyLogLevel,
}

func newSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change saved settings",
	}
	settingsCmd.AddCommand(newSettingsShowCmd())
	settingsCmd.AddCommand(newSettingsSetCmd())
	return settingsCmd
}

func newSettingsShowCmd() *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print saved settings as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.DefaultStore()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("# "+store.Path()))
			return writeSettings(cmd.OutOrStdout(), store.Load(), reveal)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print sensitive values unmasked")
	return cmd
}

func writeSettings(w io.Writer, settings config.Settings, reveal bool) error {
	shown := settings.Clone()
	if !reveal {
		maskSensitive(shown)
	}
	if len(shown) == 0 {
		_, err := fmt.Fprintln(w, "{}")
		return err
	}
	data, err := yaml.Marshal(map[string]any(shown))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func maskSensitive(settings config.Settings) {
	if v := settings.String(config.KeyBaseURL); v != "" {
		settings[config.KeyBaseURL] = security.RedactURL(v)
	}
	if v := settings.String(config.KeyAPIKey); v != "" {
		settings[config.KeyAPIKey] = security.MaskKey(v)
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value...",
		Short: "Save one or more settings, leaving the others untouched",
		Long: "Save one or more settings. Known keys: " + strings.Join(knownSettings, ", ") + `.
An empty value ("key=") stores an empty string.`,
		Example: `  openinterface settings set model=llama3.1 base_url=http://gpu-box:11434/
  openinterface settings set play_ding_on_completion=true`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := parseAssignments(args)
			if err != nil {
				return err
			}
			store, err := config.DefaultStore()
			if err != nil {
				return err
			}
			if err := store.Save(partial); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s.\n", strings.Join(slices.Sorted(maps.Keys(partial)), ", "))
			return nil
		},
	}
}

// parseAssignments turns key=value arguments into a partial settings map.
func parseAssignments(args []string) (config.Settings, error) {
	partial := make(config.Settings, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", arg)
		}
		if !slices.Contains(knownSettings, key) {
			return nil, fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(knownSettings, ", "))
		}
		if boolSettings[key] {
			switch strings.ToLower(strings.TrimSpace(value)) {
			case "true", "1", "yes", "on":
				partial[key] = true
			case "false", "0", "no", "off", "":
				partial[key] = false
			default:
				return nil, fmt.Errorf("setting %s wants a boolean, got %q", key, value)
			}
			continue
		}
		partial[key] = value
	}
	return partial, nil
}
