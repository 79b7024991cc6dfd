// Package analyzer estimates musical key and tempo by running an external
// analysis script.
package analyzer

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
)

// Defaults for Config fields left empty.
const (
	DefaultPython  = "python3"
	DefaultTimeout = 2 * time.Minute
	ScriptName     = "audio_analyzer.py"

	appName = "beatbank"
	// Maximum bytes of process output kept in an Error.
	outputTail = 512
)

//go:embed audio_analyzer.py
var bundledScript []byte

// Analyzer estimates key and tempo for the audio file at path.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (Result, error)
}

// Config selects the interpreter and script an analysis runs with.
type Config struct {
	// Python is the interpreter binary. Defaults to DefaultPython.
	Python string
	// Script is the analysis script. When empty the bundled script is
	// written to the user cache dir and used.
	Script string
	// SearchPath is prepended to PYTHONPATH for the child process only.
	SearchPath []string
	// Timeout bounds a single analysis. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// CommandRunner runs name with args and returns its stdout. env is the full
// child environment, or nil to inherit the current one.
type CommandRunner func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)

// Option configures a Process.
type Option func(*Process)

// WithCommandRunner replaces process execution (for testing).
func WithCommandRunner(run CommandRunner) Option {
	return func(p *Process) {
		if run != nil {
			p.run = run
		}
	}
}

// WithLogger sets the logger used for analysis runs.
func WithLogger(log *zap.Logger) Option {
	return func(p *Process) {
		if log != nil {
			p.log = log
		}
	}
}

// Process is an Analyzer backed by an external interpreter process.
type Process struct {
	cfg Config
	run CommandRunner
	log *zap.Logger
}

// NewProcess returns a Process using cfg, with defaults filled in.
func NewProcess(cfg Config, opts ...Option) *Process {
	if cfg.Python == "" {
		cfg.Python = DefaultPython
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	p := &Process{
		cfg: cfg,
		run: runCommand,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze runs the script on path and parses its result.
func (p *Process) Analyze(ctx context.Context, path string) (Result, error) {
	script := p.cfg.Script
	if script == "" {
		var err error
		if script, err = EnsureScript(); err != nil {
			return Result{}, &Error{Path: path, Op: OpScript, Err: err}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := p.run(runCtx, p.env(), p.cfg.Python, script, path)
	elapsed := time.Since(start)

	if err != nil {
		// A deadline hit by our own timeout is reported as such. The caller's
		// cancellation is passed through unchanged.
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			p.log.Warn("analyzer timed out",
				zap.String("path", path),
				zap.Duration("timeout", p.cfg.Timeout))
			return Result{}, &Error{
				Path: path,
				Op:   OpTimeout,
				Err:  fmt.Errorf("no result after %s: %w", p.cfg.Timeout, context.DeadlineExceeded),
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, &Error{Path: path, Op: OpRun, Err: ctxErr}
		}
		return Result{}, &Error{Path: path, Op: OpRun, Err: err, Output: tail(out)}
	}

	res, err := ParseOutput(out)
	if err != nil {
		return Result{}, &Error{Path: path, Op: OpParse, Err: err, Output: tail(out)}
	}

	p.log.Debug("analyzer finished",
		zap.String("path", path),
		zap.String("key", res.Key),
		zap.Float64("tempo", res.Tempo),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

// env returns the child environment with SearchPath prepended to
// PYTHONPATH, or nil when there is nothing to add.
func (p *Process) env() []string {
	if len(p.cfg.SearchPath) == 0 {
		return nil
	}
	paths := append([]string{}, p.cfg.SearchPath...)
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		paths = append(paths, existing)
	}
	return append(os.Environ(), "PYTHONPATH="+strings.Join(paths, string(os.PathListSeparator)))
}

// runCommand executes name and returns stdout. Stderr is folded into the
// error on failure.
func runCommand(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, tail([]byte(msg)))
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// EnsureScript writes the bundled analysis script to the user cache dir
// when missing or stale and returns its path.
func EnsureScript() (string, error) {
	path, err := xdg.CacheFile(filepath.Join(appName, ScriptName))
	if err != nil {
		return "", fmt.Errorf("resolve cache path: %w", err)
	}

	if current, err := os.ReadFile(path); err == nil && bytes.Equal(current, bundledScript) {
		return path, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ScriptName+".*")
	if err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(bundledScript); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write script: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install script: %w", err)
	}
	return path, nil
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	return s
}
