package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/provguard/internal/logging"
)

// DefaultTimeout bounds a single command probe.
const DefaultTimeout = 60 * time.Second

// waitDelay caps how long Wait blocks on output pipes held open by
// grandchildren after the probed process has been killed.
const waitDelay = 2 * time.Second

// Prober reads artifacts relative to a fixed harness directory.
// It holds no per-call state and never changes the process working directory.
type Prober struct {
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Prober rooted at dir, made absolute. A zero timeout selects
// DefaultTimeout.
func New(dir string, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return &Prober{dir: dir, timeout: timeout, logger: logger}
}

// Probe returns the textual content of the artifact.
func (p *Prober) Probe(ctx context.Context, a Artifact) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}

	switch a.Kind {
	case KindFile:
		data, err := p.ReadFile(a.Locator[0])
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return p.Invoke(ctx, a.Locator)
	}
}

// ReadFile returns the raw bytes of a file artifact.
// Relative paths resolve against the harness directory.
func (p *Prober) ReadFile(path string) ([]byte, error) {
	full := p.resolve(path)

	info, err := os.Stat(full)
	if err != nil {
		return nil, &AccessError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &AccessError{Path: path, Err: errors.New("is a directory")}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &AccessError{Path: path, Err: err}
	}

	p.logger.Debug("read file artifact", "path", path, "bytes", len(data))
	return data, nil
}

// Invoke runs args with the inherited environment, the harness directory as
// working directory and a bounded timeout. It returns stdout followed by
// stderr. A non-zero exit status is not an error; the output is still
// returned for checking.
func (p *Prober) Invoke(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", &ProcessError{Args: args, Err: errors.New("empty command")}
	}

	exe, err := p.lookPath(args[0])
	if err != nil {
		return "", &ProcessError{Args: args, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	//nolint:gosec // G204: probed commands come from the suite configuration
	cmd := exec.CommandContext(runCtx, exe, args[1:]...)
	cmd.Dir = p.dir
	cmd.Env = os.Environ()
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		return "", &ProcessError{Args: args, Err: ctx.Err()}
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return "", &ProcessError{Args: args, TimedOut: true, Timeout: p.timeout, Err: runCtx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", &ProcessError{Args: args, Err: err}
		}
		p.logger.Warn("probed command exited non-zero",
			"command", strings.Join(args, " "),
			"exit_code", exitErr.ExitCode(),
		)
	}

	p.logger.Debug("invoked command artifact",
		"command", strings.Join(args, " "),
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"duration", elapsed,
	)

	return stdout.String() + stderr.String(), nil
}

// lookPath resolves an executable. Names with a path separator resolve
// against the harness directory; bare names are searched in PATH.
func (p *Prober) lookPath(name string) (string, error) {
	if !strings.ContainsRune(name, filepath.Separator) && !strings.Contains(name, "/") {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("executable not found: %w", err)
		}
		return path, nil
	}

	full := p.resolve(name)
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("executable not found: %w", err)
	}
	if info.IsDir() || info.Mode()&0111 == 0 {
		return "", fmt.Errorf("not an executable file: %s", full)
	}
	return full, nil
}

func (p *Prober) resolve(path string) string {
	if filepath.IsAbs(path) || p.dir == "" {
		return path
	}
	return filepath.Join(p.dir, path)
}
