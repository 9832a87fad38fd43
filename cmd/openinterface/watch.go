package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"openinterface/internal/config"
	"openinterface/internal/llm"
	"openinterface/internal/logging"

	"github.com/spf13/cobra"
)

// rebuildKeys change the backend's context or connection, so a new backend
// is built when they change.
var rebuildKeys = []string{
	config.KeyBaseURL,
	config.KeyAPIKey,
	config.KeyDefaultBrowser,
	config.KeyCustomInstructions,
}

func newWatchCmd() *cobra.Command {
	var (
		format   string
		maxSteps int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Read objectives from stdin, one per line, following settings changes live",
		Long: `Read objectives from standard input, one per line, and print the
instructions for each. Editing the settings file (or running "settings set"
elsewhere) switches the model or rebuilds the backend without restarting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			coord, store, err := newCoordinator(ctx)
			if err != nil {
				return err
			}
			defer coord.Cleanup()

			changes := make(chan config.Settings, 1)
			watcher, err := config.NewWatcher(store, 0, func(s config.Settings) {
				// Keep only the newest pending snapshot.
				select {
				case <-changes:
				default:
				}
				changes <- s
			})
			if err != nil {
				return fmt.Errorf("failed to watch settings: %w", err)
			}
			if err := watcher.Start(); err != nil {
				return fmt.Errorf("failed to watch settings: %w", err)
			}
			defer watcher.Stop()

			lines := readLines(cmd.InOrStdin())
			current := store.Load()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Using %s (%s). Enter an objective per line, Ctrl-D to quit.", coord.Model(), coord.Family())))
			for {
				select {
				case <-ctx.Done():
					return nil

				case next := <-changes:
					if err := applySettingsChange(ctx, coord, current, next); err != nil {
						logging.Warn("failed to apply settings change", "error", err)
						fmt.Fprintln(os.Stderr, warnStyle.Render("Settings change not applied: "+err.Error()))
					} else {
						fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("Using %s (%s).", coord.Model(), coord.Family())))
					}
					current = next

				case line, ok := <-lines:
					if !ok {
						return nil
					}
					objective := strings.TrimSpace(line)
					if objective == "" {
						continue
					}
					if err := runObjective(ctx, out, coord, objective, maxSteps, format); err != nil {
						return err
					}
				}
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	cmd.Flags().IntVar(&maxSteps, "steps", 1, "requests per objective, stopping early when the model reports done")

	return cmd
}

func runObjective(ctx context.Context, w io.Writer, coord *llm.Coordinator, objective string, maxSteps int, format string) error {
	for step := range max(maxSteps, 1) {
		set, err := coord.GetInstructions(ctx, objective, step)
		if err != nil {
			return err
		}
		rendered, err := renderInstructions(set, format)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, rendered)
		if set.Done || set.IsEmpty() {
			return nil
		}
	}
	return nil
}

// applySettingsChange switches to a newly saved model, and rebuilds the
// backend when connection or context settings changed.
func applySettingsChange(ctx context.Context, coord *llm.Coordinator, prev, next config.Settings) error {
	model := next.String(config.KeyModel)
	if model == "" {
		model = coord.Model()
	}

	var opts []llm.SwitchOption
	for _, key := range rebuildKeys {
		if prev.String(key) != next.String(key) {
			logging.Info("settings changed, rebuilding backend", "key", key)
			opts = append(opts, llm.RebuildContext())
			break
		}
	}

	if model == coord.Model() && len(opts) == 0 {
		return nil
	}
	return coord.SwitchModel(ctx, model, opts...)
}

// readLines streams lines from r until EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logging.Warn("stdin read failed", "error", err)
		}
	}()
	return lines
}
