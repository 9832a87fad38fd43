package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"openinterface/internal/client"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	colorAccent = lipgloss.Color("#7C3AED")
	colorDim    = lipgloss.Color("#6B7280")
	colorOK     = lipgloss.Color("#10B981")
	colorWarn   = lipgloss.Color("#F59E0B")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	funcStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	okStyle     = lipgloss.NewStyle().Foreground(colorOK)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

func renderInstructions(set client.InstructionSet, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalJSON(set)
	case formatYAML:
		data, err := yaml.Marshal(set)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\n"), nil
	case formatText, "":
		return renderText(set), nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, yaml or text)", format)
	}
}

func marshalJSON(set client.InstructionSet) (string, error) {
	if set.Steps == nil {
		set.Steps = []client.Step{}
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func renderText(set client.InstructionSet) string {
	if set.IsEmpty() {
		return warnStyle.Render("No progress this step: the model returned no usable instructions.")
	}

	var sb strings.Builder
	for i, step := range set.Steps {
		fmt.Fprintf(&sb, "%s %s", headerStyle.Render(fmt.Sprintf("%d.", i+1)), funcStyle.Render(step.Function))
		if params := formatParams(step.Parameters); params != "" {
			fmt.Fprintf(&sb, " %s", params)
		}
		sb.WriteString("\n")
		if step.Justification != "" {
			fmt.Fprintf(&sb, "   %s\n", dimStyle.Render(step.Justification))
		}
	}

	switch {
	case set.Summary != "":
		sb.WriteString(okStyle.Render("Done: " + set.Summary))
	case set.Done:
		sb.WriteString(okStyle.Render("Done."))
	default:
		sb.WriteString(dimStyle.Render("More steps may follow."))
	}
	return sb.String()
}

// formatParams renders parameters as sorted key=value pairs.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, " ")
}
