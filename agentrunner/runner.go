/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agentrunner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// ErrSpawn indicates the assistant binary could not be started. It is fatal;
// there is no retry.
var ErrSpawn = errors.New("could not start assistant process")

const (
	// TimeoutExitCode is the sentinel reported when the assistant exceeds
	// its wall-clock budget, regardless of what the process itself reports.
	TimeoutExitCode = 124

	// CancelExitCode is reported when the surrounding context is canceled
	// before the assistant exits. 128+SIGINT, so cancellation is never
	// mistaken for the timeout sentinel.
	CancelExitCode = 130

	// termGracePeriod is how long a terminated assistant gets to exit
	// before it is force-killed.
	termGracePeriod = 5 * time.Second

	maxLineBytes = 10 * 1024 * 1024
)

// Runner executes the assistant binary with the prompt streamed through a
// named pipe, captures its structured stdout, and enforces a timeout.
type Runner struct {
	binPath      string
	args         []string
	env          []string
	pipePath     string
	artifactPath string
	timeout      time.Duration
	transform    LineTransform
	output       io.Writer
	stderr       io.Writer
}

// Result is the execution artifact of one run, produced exactly once.
type Result struct {
	Succeeded bool
	ExitCode  int
	// ArtifactPath points at the structured execution log, or "" when none
	// was persisted.
	ArtifactPath string
}

// Option configures a Runner.
type Option func(*Runner)

// WithArgs sets the assistant CLI arguments.
func WithArgs(args ...string) Option {
	return func(r *Runner) { r.args = args }
}

// WithEnv appends environment entries ("KEY=value") to the inherited
// environment of the assistant process.
func WithEnv(env ...string) Option {
	return func(r *Runner) { r.env = env }
}

// WithPipePath overrides the named pipe location. Each invocation must own
// its own path; nothing is shared across concurrent runs.
func WithPipePath(path string) Option {
	return func(r *Runner) { r.pipePath = path }
}

// WithArtifactPath enables persisting captured output as a structured
// execution log at the given path.
func WithArtifactPath(path string) Option {
	return func(r *Runner) { r.artifactPath = path }
}

// WithTimeout sets the wall-clock budget for the assistant process.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithLineTransform replaces the cosmetic transform applied to each captured
// stdout line before it is echoed to the run log.
func WithLineTransform(t LineTransform) Option {
	return func(r *Runner) { r.transform = t }
}

// WithOutput redirects where transformed lines are echoed (default stdout).
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.output = w }
}

// WithStderr redirects the assistant's stderr (default: inherited).
func WithStderr(w io.Writer) Option {
	return func(r *Runner) { r.stderr = w }
}

// New constructs a Runner for the assistant binary at binPath.
func New(binPath string, opts ...Option) *Runner {
	r := &Runner{
		binPath:   binPath,
		pipePath:  filepath.Join(os.TempDir(), "assistant-prompt.pipe"),
		timeout:   30 * time.Minute,
		transform: PrettyJSON,
		output:    os.Stdout,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run streams the prompt file into the assistant through the named pipe and
// captures its stdout until exit or timeout. Pipe and helper cleanup happens
// on every exit path. The returned error is non-nil only for setup failures
// (ErrSpawn and pipe creation); a timed-out or failed assistant is reported
// through the Result.
func (r *Runner) Run(ctx context.Context, promptPath string) (*Result, error) {
	log := clog.FromContext(ctx)

	// Canceled on every exit path so the prompt writer can never outlive
	// the run waiting for a reader that will not come.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := os.Remove(r.pipePath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale pipe: %w", err)
	}
	if err := unix.Mkfifo(r.pipePath, 0o600); err != nil {
		return nil, fmt.Errorf("creating prompt pipe: %w", err)
	}
	defer os.Remove(r.pipePath)

	// The writer waits for the read end below to open; from then on the
	// pipe itself provides backpressure.
	var writer errgroup.Group
	writer.Go(func() error {
		w, err := openWriteEnd(ctx, r.pipePath)
		if err != nil {
			return fmt.Errorf("opening pipe for writing: %w", err)
		}
		defer w.Close()

		prompt, err := os.Open(promptPath)
		if err != nil {
			return fmt.Errorf("opening prompt file: %w", err)
		}
		defer prompt.Close()

		if _, err := io.Copy(w, prompt); err != nil {
			return fmt.Errorf("streaming prompt: %w", err)
		}
		return nil
	})
	defer func() {
		// Pipe transport errors are best-effort: the assistant's own exit
		// status is authoritative.
		cancel()
		if err := writer.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.With("error", err).Warn("Prompt writer finished with error")
		}
	}()

	stdin, err := os.OpenFile(r.pipePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening pipe for reading: %w", err)
	}

	cmd := exec.Command(r.binPath, r.args...)
	cmd.Stdin = stdin
	cmd.Stderr = r.stderr
	// Run the assistant in its own process group so termination reaches any
	// children it spawned; otherwise a straggler can hold the stdout pipe
	// open past the kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("capturing stdout: %w", err)
	}

	log.With("bin", r.binPath).With("timeout", r.timeout).Info("Starting assistant process")
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	// The child holds its own descriptor; closing ours lets the prompt
	// writer observe EPIPE once the child exits.
	stdin.Close()

	var captured []string
	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := scanner.Text()
			captured = append(captured, line)
			fmt.Fprintf(r.output, "%s\n", r.transform(line))
		}
		if err := scanner.Err(); err != nil {
			log.With("error", err).Warn("Reading assistant output failed")
		}
	}()

	waitErr := make(chan error, 1)
	go func() {
		// Wait must not run until the stdout pipe is drained.
		<-captureDone
		waitErr <- cmd.Wait()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	var exitCode int
	select {
	case err := <-waitErr:
		exitCode = exitCodeOf(err)
	case <-timer.C:
		log.With("timeout", r.timeout).Warn("Assistant exceeded its time budget, terminating")
		r.terminate(ctx, cmd, waitErr)
		exitCode = TimeoutExitCode
	case <-ctx.Done():
		log.With("cause", ctx.Err()).Warn("Run canceled, terminating assistant")
		r.terminate(ctx, cmd, waitErr)
		exitCode = CancelExitCode
	}

	result := &Result{
		Succeeded: exitCode == 0,
		ExitCode:  exitCode,
	}
	if exitCode == 0 || len(captured) > 0 {
		result.ArtifactPath = r.persistArtifact(ctx, captured)
	}

	if result.Succeeded {
		log.With("lines", len(captured)).Info("Assistant completed successfully")
	} else {
		log.With("exit_code", exitCode).With("lines", len(captured)).Warn("Assistant did not complete successfully")
	}

	return result, nil
}

// terminate signals the assistant to exit, waits out the grace period, and
// force-kills if it is still alive. The helper goroutines drain on their own
// once the process is gone.
func (r *Runner) terminate(ctx context.Context, cmd *exec.Cmd, waitErr <-chan error) {
	log := clog.FromContext(ctx)

	pgid := cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		log.With("error", err).Warn("Sending SIGTERM failed")
	}

	select {
	case <-waitErr:
		return
	case <-time.After(termGracePeriod):
	}

	log.Warn("Assistant ignored SIGTERM, killing")
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		log.With("error", err).Warn("Killing assistant failed")
	}
	<-waitErr
}

// persistArtifact writes the parsed structured records from the captured
// output. Artifact creation is best-effort telemetry: a failure here never
// changes the run's verdict.
func (r *Runner) persistArtifact(ctx context.Context, captured []string) string {
	if r.artifactPath == "" {
		return ""
	}
	log := clog.FromContext(ctx)

	records := make([]json.RawMessage, 0, len(captured))
	for _, line := range captured {
		if json.Valid([]byte(line)) {
			records = append(records, json.RawMessage(line))
		}
	}

	data, err := json.Marshal(records)
	if err != nil {
		log.With("error", err).Warn("Encoding execution artifact failed")
		return ""
	}
	if err := os.WriteFile(r.artifactPath, data, 0o644); err != nil {
		log.With("error", err).Warn("Writing execution artifact failed")
		return ""
	}

	log.With("path", r.artifactPath).With("records", len(records)).Info("Persisted execution artifact")
	return r.artifactPath
}

// openWriteEnd opens the write side of the fifo once a reader has attached.
// A plain blocking open would wedge forever if the read side never opens, so
// it polls with O_NONBLOCK and honors cancellation.
func openWriteEnd(ctx context.Context, path string) (*os.File, error) {
	for {
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			if err := unix.SetNonblock(fd, false); err != nil {
				unix.Close(fd)
				return nil, fmt.Errorf("restoring blocking writes: %w", err)
			}
			return os.NewFile(uintptr(fd), path), nil
		}
		if err != unix.ENXIO {
			return nil, err
		}

		// ENXIO: no reader yet.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
