package browser

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/grantcarthew/cdpconn/internal/cdp"
)

// Host is the address launched browsers listen on.
const Host = "127.0.0.1"

// DefaultStartTimeout bounds the wait for the debugging endpoint when the
// context passed to Start has no deadline.
const DefaultStartTimeout = 30 * time.Second

// ErrStartTimeout is returned when the browser fails to start in time.
var ErrStartTimeout = errors.New("browser start timeout")

// Browser represents a running browser process with CDP enabled.
type Browser struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	kind    Kind
	port    int
	tempDir string
}

// Start launches a browser and waits for its /json/version endpoint to
// answer before returning.
func Start(ctx context.Context, opts LaunchOptions) (*Browser, error) {
	binPath := opts.BinaryPath
	if binPath == "" {
		var err error
		if binPath, err = Find(opts.Kind); err != nil {
			return nil, err
		}
	}

	cmd, tempDir, err := spawnProcess(binPath, opts)
	if err != nil {
		return nil, err
	}

	b := &Browser{
		cmd:     cmd,
		kind:    opts.Kind,
		port:    opts.port(),
		tempDir: tempDir,
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultStartTimeout)
		defer cancel()
	}

	if err := b.waitForCDP(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}

	return b, nil
}

// waitForCDP polls the CDP endpoint until it responds or ctx is done.
func (b *Browser) waitForCDP(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return errors.Wrapf(ErrStartTimeout, "port %d: %v", b.port, lastErr)
			}
			return errors.Wrapf(ErrStartTimeout, "port %d", b.port)
		case <-ticker.C:
			if _, lastErr = cdp.FetchVersion(ctx, Host, b.port); lastErr == nil {
				return nil
			}
		}
	}
}

// Kind returns the browser family.
func (b *Browser) Kind() Kind {
	return b.kind
}

// Port returns the CDP debugging port.
func (b *Browser) Port() int {
	return b.port
}

// PID returns the browser process ID, or 0 once closed.
func (b *Browser) PID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cmd == nil || b.cmd.Process == nil {
		return 0
	}
	return b.cmd.Process.Pid
}

// Version fetches the browser version information.
func (b *Browser) Version(ctx context.Context) (*cdp.VersionInfo, error) {
	return cdp.FetchVersion(ctx, Host, b.port)
}

// Targets fetches the list of available CDP targets.
func (b *Browser) Targets(ctx context.Context) ([]cdp.Target, error) {
	return cdp.FetchTargets(ctx, Host, b.port)
}

// Close terminates the browser process and removes a temporary profile.
// It is safe to call more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cmd == nil || b.cmd.Process == nil {
		return nil
	}

	if err := b.cmd.Process.Signal(os.Interrupt); err != nil {
		if !errors.Is(err, os.ErrProcessDone) {
			_ = b.cmd.Process.Kill()
		}
	}

	_ = b.cmd.Wait()

	if b.tempDir != "" {
		_ = os.RemoveAll(b.tempDir)
	}

	b.cmd = nil
	return nil
}
