package context

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const screenProbeTimeout = 2 * time.Second

// SystemProbe inspects the local machine.
type SystemProbe struct {
	// AppPatterns are doublestar globs matching application launchers.
	// A leading "~/" expands to the user's home directory.
	AppPatterns []string

	// OSReleasePath is read on linux for the distribution name.
	OSReleasePath string

	// GOOS overrides runtime.GOOS, for tests.
	GOOS string
}

// NewSystemProbe returns a probe configured for the running OS.
func NewSystemProbe() *SystemProbe {
	return &SystemProbe{
		AppPatterns:   defaultAppPatterns(runtime.GOOS),
		OSReleasePath: "/etc/os-release",
		GOOS:          runtime.GOOS,
	}
}

func defaultAppPatterns(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/*.app",
			"/System/Applications/*.app",
			"~/Applications/*.app",
		}
	case "windows":
		return []string{
			"C:/ProgramData/Microsoft/Windows/Start Menu/Programs/**/*.lnk",
			"~/AppData/Roaming/Microsoft/Windows/Start Menu/Programs/**/*.lnk",
		}
	default:
		return []string{
			"/usr/share/applications/*.desktop",
			"/var/lib/flatpak/exports/share/applications/*.desktop",
			"/var/lib/snapd/desktop/applications/*.desktop",
			"~/.local/share/applications/*.desktop",
		}
	}
}

// InstalledApps returns the sorted, de-duplicated launcher names.
func (p *SystemProbe) InstalledApps() ([]string, error) {
	home, _ := os.UserHomeDir()

	seen := make(map[string]struct{})
	var apps []string
	for _, pattern := range p.AppPatterns {
		if strings.HasPrefix(pattern, "~/") {
			if home == "" {
				continue
			}
			pattern = filepath.ToSlash(home) + pattern[1:]
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			name := appName(m)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			apps = append(apps, name)
		}
	}
	slices.Sort(apps)
	return apps, nil
}

func appName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OSName returns a human-readable OS identity.
func (p *SystemProbe) OSName() (string, error) {
	switch p.GOOS {
	case "linux":
		name, err := readPrettyName(p.OSReleasePath)
		if err != nil || name == "" {
			return "Linux", err
		}
		return name, nil
	case "darwin":
		return "macOS", nil
	case "windows":
		return "Windows", nil
	default:
		return p.GOOS, nil
	}
}

func readPrettyName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || key != "PRETTY_NAME" {
			continue
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			return unquoted, nil
		}
		return strings.Trim(value, `"'`), nil
	}
	return "", scanner.Err()
}

var xrandrCurrent = regexp.MustCompile(`current (\d+) x (\d+)`)

// ScreenSize asks xrandr for the current screen size. Other platforms report
// an error and the fact is left out of the context.
func (p *SystemProbe) ScreenSize() (int, int, error) {
	if p.GOOS != "linux" {
		return 0, 0, fmt.Errorf("screen size probe not supported on %s", p.GOOS)
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return 0, 0, fmt.Errorf("no display")
	}

	ctx, cancel := context.WithTimeout(context.Background(), screenProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "xrandr", "--current").Output()
	if err != nil {
		return 0, 0, fmt.Errorf("xrandr: %w", err)
	}
	return parseXrandr(string(out))
}

func parseXrandr(out string) (int, int, error) {
	m := xrandrCurrent.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, fmt.Errorf("xrandr output has no current size")
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w, h, nil
}
