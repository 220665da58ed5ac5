package build

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/provguard/internal/logging"
)

// DefaultTimeout bounds a whole reset (clean plus build).
const DefaultTimeout = 2 * time.Hour

// Default commands, run in the harness directory.
var (
	DefaultClean = []string{"make", "clean"}
	DefaultBuild = []string{"make"}
)

// Config describes how to reset a toolchain tree.
type Config struct {
	// Dir is the harness directory the commands run in.
	Dir string

	// Clean and Build are argv lists. Nil selects the defaults.
	Clean []string
	Build []string

	// Timeout bounds the whole reset. Zero selects DefaultTimeout.
	Timeout time.Duration
}

// Orchestrator resets a toolchain tree.
type Orchestrator struct {
	dir     string
	clean   []string
	build   []string
	timeout time.Duration
	lock    *semaphore.Weighted
	logger  *slog.Logger
}

// treeLocks maps an absolute harness directory to its build lock.
var treeLocks sync.Map

func lockFor(dir string) *semaphore.Weighted {
	l, _ := treeLocks.LoadOrStore(dir, semaphore.NewWeighted(1))
	return l.(*semaphore.Weighted)
}

// New returns an Orchestrator for cfg. Orchestrators sharing a directory
// share a build lock.
func New(cfg Config, logger *slog.Logger) *Orchestrator {
	dir := cfg.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	clean := cfg.Clean
	if clean == nil {
		clean = DefaultClean
	}
	build := cfg.Build
	if build == nil {
		build = DefaultBuild
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Orchestrator{
		dir:     dir,
		clean:   append([]string(nil), clean...),
		build:   append([]string(nil), build...),
		timeout: timeout,
		lock:    lockFor(dir),
		logger:  logger,
	}
}

// Reset cleans then rebuilds the tree. It is idempotent: each call leaves
// the tree freshly built from a clean state.
//
// If ctx is cancelled, while waiting for the build lock or while a step
// runs, Reset returns ctx.Err() unwrapped. Any other error is a *Failure.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer o.lock.Release(1)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	o.logger.Info("resetting build tree", "dir", o.dir)

	if err := o.run(ctx, StepClean, o.clean); err != nil {
		return err
	}
	if err := o.run(ctx, StepBuild, o.build); err != nil {
		return err
	}

	o.logger.Info("build tree ready", "dir", o.dir, "duration", time.Since(start))
	return nil
}

func (o *Orchestrator) run(ctx context.Context, step Step, args []string) error {
	if len(args) == 0 {
		return &Failure{Step: step, ExitCode: -1, Err: errors.New("empty command")}
	}

	//nolint:gosec // G204: build commands come from the suite configuration
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = o.dir
	cmd.Env = os.Environ()
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	o.logger.Debug("running build step", "step", step, "command", strings.Join(args, " "))
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		o.logger.Warn("build step interrupted", "step", step, "command", strings.Join(args, " "))
		return ctx.Err()
	}

	failure := &Failure{
		Step:     step,
		Args:     args,
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Err:      err,
	}
	if ctx.Err() == context.DeadlineExceeded {
		failure.TimedOut = true
		failure.Err = ctx.Err()
	} else {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		}
	}

	o.logger.Error("build step failed",
		"step", step,
		"command", strings.Join(args, " "),
		"exit_code", failure.ExitCode,
		"timed_out", failure.TimedOut,
	)
	return failure
}
