// Package shell is the only place cmdmask starts processes. Callers hand it
// shell text; it materializes the text as a temp script, runs it, captures
// output and exit status, and enforces a timeout.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrTimeout indicates the job ran past its timeout and was killed.
	ErrTimeout = errors.New("execution timed out")

	// ErrLaunch indicates the job could not be started.
	ErrLaunch = errors.New("execution failed to start")
)

// DefaultShell is the interpreter used when ExecRunner.Shell is empty.
const DefaultShell = "/bin/bash"

// Job is one piece of shell text to run.
type Job struct {
	Script string
	// Stdin is fed to the script's standard input.
	Stdin string
	// Timeout bounds the run; zero means no limit beyond ctx.
	Timeout time.Duration
}

// Output is what a finished job produced. A non-zero ExitCode is not an
// error.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (o Output) Combined() string {
	return o.Stdout + o.Stderr
}

// Runner runs shell text and captures its output.
type Runner interface {
	Run(ctx context.Context, job Job) (Output, error)
}

// ExecRunner runs jobs as child processes of a real shell.
type ExecRunner struct {
	// Shell is the interpreter path. Empty means DefaultShell.
	Shell string
	// TempDir holds the per-job script files. Empty means os.TempDir().
	TempDir string
	// Env, when non-nil, replaces the child environment.
	Env []string
}

// NewExecRunner returns a runner using shellPath, or DefaultShell when
// shellPath is empty.
func NewExecRunner(shellPath string) *ExecRunner {
	return &ExecRunner{Shell: shellPath}
}

// Run writes job.Script to a temp file, executes it, and removes the file
// before returning on every path.
func (r *ExecRunner) Run(ctx context.Context, job Job) (Output, error) {
	script, err := os.CreateTemp(r.TempDir, "cmdmask-*.sh")
	if err != nil {
		return Output{}, fmt.Errorf("%w: create script: %v", ErrLaunch, err)
	}
	path := script.Name()
	defer os.Remove(path)

	_, err = script.WriteString(job.Script)
	if cerr := script.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Output{}, fmt.Errorf("%w: write script: %v", ErrLaunch, err)
	}
	if err := os.Chmod(path, 0700); err != nil {
		return Output{}, fmt.Errorf("%w: chmod script: %v", ErrLaunch, err)
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	shellPath := r.Shell
	if shellPath == "" {
		shellPath = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shellPath, path)
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if job.Stdin != "" {
		cmd.Stdin = strings.NewReader(job.Stdin)
	}
	killProcessGroup(cmd)
	// Grandchildren that inherited the output pipes must not keep Wait
	// blocked after the shell itself is gone.
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, ErrTimeout
		}
		return out, ctx.Err()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, fmt.Errorf("%w: %v", ErrLaunch, runErr)
	}
	return out, nil
}
