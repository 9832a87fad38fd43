package context

import (
	"fmt"
	"os"
	"strings"

	"openinterface/internal/config"
	"openinterface/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Probe reports facts about the machine the steps will run on.
type Probe interface {
	InstalledApps() ([]string, error)
	OSName() (string, error)
	ScreenSize() (width, height int, err error)
}

// Builder assembles the preamble sent with every request: the static context
// asset, environment facts and the user's declared preferences.
type Builder struct {
	ContextPath string
	Probe       Probe
}

// NewBuilder returns a builder reading the asset at path and probing the
// local system.
func NewBuilder(path string) *Builder {
	if path == "" {
		path = config.DefaultContextPath
	}
	return &Builder{
		ContextPath: path,
		Probe:       NewSystemProbe(),
	}
}

type environment struct {
	apps          []string
	osName        string
	width, height int
}

// Build returns the full context text. It reads settings but never mutates
// them. Only a missing asset is an error; a probe that fails simply leaves its
// fact out.
func (b *Builder) Build(settings config.Settings) (string, error) {
	var (
		static string
		env    environment
		g      errgroup.Group
	)

	g.Go(func() error {
		data, err := os.ReadFile(b.ContextPath)
		if err != nil {
			return &ContextUnavailableError{Path: b.ContextPath, Err: err}
		}
		static = string(data)
		return nil
	})

	if b.Probe != nil {
		g.Go(func() error {
			apps, err := b.Probe.InstalledApps()
			if err != nil {
				logging.Warn("installed apps probe failed", "error", err)
			}
			env.apps = apps
			return nil
		})
		g.Go(func() error {
			name, err := b.Probe.OSName()
			if err != nil {
				logging.Warn("os probe failed", "error", err)
			}
			env.osName = name
			return nil
		})
		g.Go(func() error {
			w, h, err := b.Probe.ScreenSize()
			if err != nil {
				logging.Debug("screen size probe failed", "error", err)
				return nil
			}
			env.width, env.height = w, h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	return assemble(static, env, settings), nil
}

func assemble(static string, env environment, settings config.Settings) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(static, "\n"))
	sb.WriteString("\n")

	if len(env.apps) > 0 {
		fmt.Fprintf(&sb, " Locally installed apps are %s.", strings.Join(env.apps, ", "))
	}
	if env.osName != "" {
		fmt.Fprintf(&sb, " OS is %s.", env.osName)
	}
	if env.width > 0 && env.height > 0 {
		fmt.Fprintf(&sb, " Primary screen size is %dx%d.", env.width, env.height)
	}
	sb.WriteString("\n")

	if browser := strings.TrimSpace(settings.String(config.KeyDefaultBrowser)); browser != "" {
		fmt.Fprintf(&sb, "\nUse %s as the browser.", browser)
	}
	if custom := strings.TrimSpace(settings.String(config.KeyCustomInstructions)); custom != "" {
		fmt.Fprintf(&sb, "\nCustom user-added info: %s", custom)
	}

	return sb.String()
}
