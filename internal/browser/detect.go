// Package browser locates and launches Chromium-based browsers with remote
// debugging enabled.
package browser

import (
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// EnvBrowser overrides binary detection when set.
const EnvBrowser = "CDPCONN_BROWSER"

// ErrBrowserNotFound is returned when no browser binary can be located.
var ErrBrowserNotFound = errors.New("browser not found")

// Kind selects the browser family to launch.
type Kind int

const (
	Chrome Kind = iota
	Edge
)

func (k Kind) String() string {
	switch k {
	case Chrome:
		return "chrome"
	case Edge:
		return "edge"
	default:
		return "unknown"
	}
}

// ParseKind accepts "chrome", "chromium" or "edge" in any case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chrome", "chromium":
		return Chrome, nil
	case "edge", "msedge":
		return Edge, nil
	default:
		return 0, errors.Errorf("unknown browser kind %q", s)
	}
}

// binaryPaths returns the candidate binaries for kind on the current platform.
func binaryPaths(kind Kind) []string {
	switch kind {
	case Edge:
		switch runtime.GOOS {
		case "darwin":
			return []string{"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"}
		case "linux":
			return []string{
				"/usr/bin/microsoft-edge",
				"/usr/bin/microsoft-edge-stable",
				"microsoft-edge",
				"microsoft-edge-stable",
			}
		case "windows":
			return []string{
				`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
				`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			}
		}
	case Chrome:
		switch runtime.GOOS {
		case "darwin":
			return []string{
				"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
				"/Applications/Chromium.app/Contents/MacOS/Chromium",
				"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
			}
		case "linux":
			return []string{
				"/usr/bin/google-chrome",
				"/usr/bin/google-chrome-stable",
				"/usr/bin/chromium",
				"/usr/bin/chromium-browser",
				"/snap/bin/chromium",
				"google-chrome",
				"google-chrome-stable",
				"chromium",
				"chromium-browser",
			}
		case "windows":
			return []string{
				`C:\Program Files\Google\Chrome\Application\chrome.exe`,
				`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			}
		}
	}
	return nil
}

// Find returns the path of a browser binary for kind. The CDPCONN_BROWSER
// environment variable takes precedence over the platform search paths.
func Find(kind Kind) (string, error) {
	if envPath := os.Getenv(EnvBrowser); envPath != "" {
		if isExecutable(envPath) {
			return envPath, nil
		}
		return "", errors.Wrapf(ErrBrowserNotFound, "%s=%s", EnvBrowser, envPath)
	}

	for _, path := range binaryPaths(kind) {
		if found, err := exec.LookPath(path); err == nil {
			return found, nil
		}
	}

	return "", errors.Wrap(ErrBrowserNotFound, kind.String())
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0
}
