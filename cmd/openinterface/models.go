package main

import (
	"fmt"
	"io"
	"strings"

	"openinterface/internal/client"
	"openinterface/internal/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models that can be selected",
		RunE: func(cmd *cobra.Command, args []string) error {
			active := config.DefaultModel
			if store, err := config.DefaultStore(); err == nil {
				if saved := store.Load().String(config.KeyModel); saved != "" {
					active = saved
				}
			}
			printModels(cmd.OutOrStdout(), client.DefaultRegistry().Models(), active)
			return nil
		},
	}
}

func printModels(w io.Writer, models []client.ModelInfo, active string) {
	idWidth, nameWidth := len("MODEL"), len("NAME")
	for _, m := range models {
		idWidth = max(idWidth, len(m.ID))
		nameWidth = max(nameWidth, len(m.Name))
	}
	idCol := lipgloss.NewStyle().Width(idWidth + 2)
	nameCol := lipgloss.NewStyle().Width(nameWidth + 2)
	familyCol := lipgloss.NewStyle().Width(len(client.FamilyOpenAI) + 2)

	fmt.Fprintln(w, "  "+headerStyle.Render(idCol.Render("MODEL")+nameCol.Render("NAME")+familyCol.Render("FAMILY")+"DESCRIPTION"))
	for _, m := range models {
		marker := "  "
		id := idCol.Render(m.ID)
		if m.ID == active {
			marker = "* "
			id = funcStyle.Render(id)
		}
		fmt.Fprintln(w, marker+id+nameCol.Render(m.Name)+familyCol.Render(m.Family)+dimStyle.Render(m.Description))
	}
}

// pullReporter prints download progress on a single rewritten line.
type pullReporter struct {
	w      io.Writer
	active bool
}

func (r *pullReporter) report(p client.PullProgress) {
	if p.Total > 0 {
		fmt.Fprintf(r.w, "\r  %s: %.1f%%    ", p.Status, p.Percent)
	} else {
		fmt.Fprintf(r.w, "\r  %s...    ", p.Status)
	}
	r.active = true
	if p.Status == "success" {
		r.finish()
	}
}

// finish ends the progress line, if one was started.
func (r *pullReporter) finish() {
	if r.active {
		fmt.Fprintln(r.w)
		r.active = false
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <model>",
		Short: "Make a model available, downloading it if the backend supports that",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			modelFlag = id

			coord, _, err := newCoordinator(cmd.Context())
			if err != nil {
				return err
			}
			defer coord.Cleanup()

			fmt.Fprintf(cmd.OutOrStdout(), "Preparing %s (%s)...\n", id, coord.Family())
			if err := coord.DownloadModel(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to prepare %s: %w", id, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(id+" is ready."))
			return nil
		},
	}
}
