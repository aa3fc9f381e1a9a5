package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"

	"github.com/pkg/errors"
)

// DefaultPort is the default CDP debugging port.
const DefaultPort = 9222

// UserDataDirDefault is the special value that means "use the user's browser profile".
const UserDataDirDefault = "default"

// ErrDuplicateArg is returned by AddArg when the argument is already present.
var ErrDuplicateArg = errors.New("argument already exists")

// LaunchOptions configures browser launch behavior.
type LaunchOptions struct {
	// Kind selects the binary search paths and default arguments.
	Kind Kind

	// Headless runs the browser without a visible window.
	Headless bool

	// Port for CDP remote debugging. If 0, uses default 9222.
	Port int

	// UserDataDir specifies the browser profile directory.
	// Special values:
	//   - Empty string: create a temporary directory (default)
	//   - "default": use the user's default profile
	//   - Any path: use that directory
	UserDataDir string

	// Args are extra command line arguments, appended after the defaults.
	Args []string

	// BinaryPath skips detection when set.
	BinaryPath string
}

// AddArg appends arg, rejecting duplicates.
func (o *LaunchOptions) AddArg(arg string) error {
	if slices.Contains(o.Args, arg) {
		return errors.Wrap(ErrDuplicateArg, arg)
	}
	o.Args = append(o.Args, arg)
	return nil
}

func (o LaunchOptions) port() int {
	if o.Port == 0 {
		return DefaultPort
	}
	return o.Port
}

// defaultArgs returns the arguments every launch carries for kind.
func defaultArgs(kind Kind) []string {
	args := []string{
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-sync",
		"--disable-popup-blocking",
		"--remote-allow-origins=*",
	}
	if kind == Edge {
		args = append(args,
			"--disable-crash-reporter",
			"--disable-features=TranslateUI",
			"--disable-component-update",
		)
	}
	return args
}

// buildArgs constructs the browser command line arguments.
func buildArgs(opts LaunchOptions) []string {
	args := []string{fmt.Sprintf("--remote-debugging-port=%d", opts.port())}
	args = append(args, defaultArgs(opts.Kind)...)

	// Platform-specific flags to avoid system dialogs
	switch runtime.GOOS {
	case "darwin":
		args = append(args, "--use-mock-keychain")
	case "linux":
		args = append(args, "--password-store=basic")
	}

	if opts.Headless {
		args = append(args, "--headless")
	}

	if opts.UserDataDir != "" && opts.UserDataDir != UserDataDirDefault {
		args = append(args, fmt.Sprintf("--user-data-dir=%s", opts.UserDataDir))
	}

	for _, arg := range opts.Args {
		if !slices.Contains(args, arg) {
			args = append(args, arg)
		}
	}

	// Open about:blank to avoid any default page loading
	return append(args, "about:blank")
}

// createTempDataDir creates a temporary directory for browser profile data.
func createTempDataDir() (string, error) {
	return os.MkdirTemp("", "cdpconn-profile-*")
}

// spawnProcess starts the browser process with the given binary and options.
// It does not wait for the process to exit.
// Returns the command, the data directory we created (empty otherwise), and any error.
func spawnProcess(binPath string, opts LaunchOptions) (*exec.Cmd, string, error) {
	var tempDir string
	if opts.UserDataDir == "" {
		dir, err := createTempDataDir()
		if err != nil {
			return nil, "", errors.Wrap(err, "create temp dir")
		}
		opts.UserDataDir = dir
		tempDir = dir
	}

	cmd := exec.Command(binPath, buildArgs(opts)...)

	// Detach from controlling terminal
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
		return nil, "", errors.Wrap(err, "start browser")
	}

	return cmd, tempDir, nil
}
