// Package process starts external commands either directly or through a shell
// and exposes a handle that reports the exit code once the process has
// exited.
package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// DefaultShell is used by Spawner.Shell when Options.Shell is empty
const DefaultShell = "/bin/sh"

// ExitCode represents the exit code returned by a process
type ExitCode int

// Int returns the exit code as an int
func (c ExitCode) Int() int {
	return int(c)
}

// Options are passed through unmodified from a job to the spawner
type Options struct {
	Dir     string    // working directory, empty means the current one
	Env     []string  // additional env variables, in the form of "key=value", added to os.Environ()
	Stdin   io.Reader // nil means the null device
	Stdout  io.Writer // nil means the null device
	Stderr  io.Writer // nil means the null device
	Shell   string    // shell used for shell commands, defaults to DefaultShell
	Isolate bool      // run in new pid, mount and network namespaces (linux only)
}

// ErrEmptyCommand is returned when there is nothing to execute
var ErrEmptyCommand = errors.New("empty command")

// Spawner starts processes. The zero value is ready to use.
type Spawner struct{}

// Shell starts script with the configured shell, as in `sh -c script`
func (Spawner) Shell(ctx context.Context, script string, opts *Options) (*Process, error) {
	if script == "" {
		return nil, ErrEmptyCommand
	}

	shell := DefaultShell
	if opts != nil && opts.Shell != "" {
		shell = opts.Shell
	}

	return start(ctx, exec.Command(shell, "-c", script), opts)
}

// Exec starts argv[0] with the remaining arguments, without a shell
func (Spawner) Exec(ctx context.Context, argv []string, opts *Options) (*Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	return start(ctx, exec.Command(argv[0], argv[1:]...), opts)
}

func start(ctx context.Context, cmd *exec.Cmd, opts *Options) (*Process, error) {
	// the context only gates the start, a started process outlives it
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &Options{}
	}

	cmd.Dir = opts.Dir
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.Env = append(os.Environ(), opts.Env...)
	if opts.Isolate {
		cmd.SysProcAttr = isolatedProcAttr()
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go p.wait()

	return &p, nil
}

// Process is a started system process
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	// these values are only safe to read after done has closed
	err      error
	exitCode *ExitCode
}

func (p *Process) wait() {
	defer close(p.done)

	p.err = p.cmd.Wait()

	var ec ExitCode

	if p.err == nil {
		p.exitCode = &ec
		return
	}

	var eerr *exec.ExitError
	if errors.As(p.err, &eerr) && eerr.ExitCode() >= 0 {
		ec = ExitCode(eerr.ExitCode())
		p.exitCode = &ec
	}
}

// Pid returns the process id
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done returns a channel that will be closed when the process exits
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited returns whether or not the process has exited
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the process's exit code and whether or not it is valid. If
// the process is still running, the exit code is not valid. A process that was
// killed by a signal also has no valid exit code.
func (p *Process) ExitCode() (ExitCode, bool) {
	if !p.Exited() {
		return 0, false
	}

	if p.exitCode == nil {
		return 0, false
	}

	return *p.exitCode, true
}

// Err returns the error returned by exec.Cmd.Wait. It will return nil while the
// process is still running.
func (p *Process) Err() error {
	if !p.Exited() {
		return nil
	}
	return p.err
}
