// Package job runs a single external command as a job whose start can depend
// on other jobs. Every job tracks its lifecycle in a Register, and dependents
// wait on the latches of that Register instead of polling.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/joshuarubin/job-runner/pkg/process"
)

// Config contains the optional settings of a job. The zero value runs the
// command with no dependencies using the process package.
type Config struct {
	Name          string             // human readable name, defaults to the job ID
	Dependencies  []*Job             // jobs that must reach WaitFor before this one is spawned
	Spawn         process.Options    // passed through unmodified to the Spawner
	Spawner       Spawner            // defaults to process.Spawner
	WaitFor       Status             // status dependencies must reach, StatusReady means StatusRunning
	FailurePolicy FailurePolicy      // what to do when a dependency fails first
	Sequential    bool               // await dependencies one at a time, in order
	Logger        *slog.Logger       // defaults to slog.Default()
	OnStatus      func(*Job, Status) // called after every status change
}

// Job represents a command that is spawned once all of its dependencies are
// ready
type Job struct {
	id     ID
	name   string
	argv   []string
	script string
	shell  bool

	deps       []*Job
	opts       process.Options
	spawner    Spawner
	waitFor    Status
	policy     FailurePolicy
	sequential bool
	log        *slog.Logger
	onStatus   func(*Job, Status)

	reg     *Register
	started atomic.Bool

	mu   sync.RWMutex
	proc Process
}

var (
	// ErrInvalidCommand is returned by New and NewShell when there is no
	// command to run
	ErrInvalidCommand = errors.New("invalid command")

	// ErrNilDependency is returned by New and NewShell when a dependency is nil
	ErrNilDependency = errors.New("nil dependency")

	// ErrAlreadyStarted is returned when trying to run a job that has already
	// been started
	ErrAlreadyStarted = errors.New("already started")

	// ErrDependencyFailed is returned by Run, with FailurePropagate, when a
	// dependency failed before reaching the status the job waits for
	ErrDependencyFailed = errors.New("dependency failed")
)

// New creates, but does not start, a job that executes argv[0] with the
// remaining arguments
func New(argv []string, cfg *Config) (*Job, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrInvalidCommand
	}
	return newJob(slices.Clone(argv), "", false, cfg)
}

// NewShell creates, but does not start, a job that runs script through a shell
func NewShell(script string, cfg *Config) (*Job, error) {
	if script == "" {
		return nil, ErrInvalidCommand
	}
	return newJob(nil, script, true, cfg)
}

func newJob(argv []string, script string, shell bool, cfg *Config) (*Job, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if slices.Contains(cfg.Dependencies, nil) {
		return nil, ErrNilDependency
	}

	waitFor := cfg.WaitFor
	if waitFor == StatusReady {
		waitFor = StatusRunning
	}
	if err := waitFor.check(); err != nil {
		return nil, err
	}

	id, err := NewID()
	if err != nil {
		return nil, err
	}

	j := Job{
		id:         id,
		name:       cfg.Name,
		argv:       argv,
		script:     script,
		shell:      shell,
		deps:       slices.Clone(cfg.Dependencies),
		opts:       cfg.Spawn,
		spawner:    cfg.Spawner,
		waitFor:    waitFor,
		policy:     cfg.FailurePolicy,
		sequential: cfg.Sequential,
		log:        cfg.Logger,
		onStatus:   cfg.OnStatus,
		reg:        NewRegister(),
	}

	// make a copy so the caller can't modify the environment of a created job
	j.opts.Env = slices.Clone(cfg.Spawn.Env)

	if j.name == "" {
		j.name = id.String()
	}

	if j.spawner == nil {
		j.spawner = processSpawner{}
	}

	if j.log == nil {
		j.log = slog.Default()
	}
	j.log = j.log.With("job", j.name, "id", id.String())

	return &j, nil
}

// ID returns the job ID
func (j *Job) ID() ID {
	return j.id
}

// Name returns the job name
func (j *Job) Name() string {
	return j.name
}

func (j *Job) String() string {
	return j.name
}

// Command returns the program and arguments, or, for shell jobs, a single
// element with the script
func (j *Job) Command() []string {
	if j.shell {
		return []string{j.script}
	}
	return slices.Clone(j.argv)
}

// Shell returns whether or not the command is run through a shell
func (j *Job) Shell() bool {
	return j.shell
}

// Dependencies returns the jobs this job waits on
func (j *Job) Dependencies() []*Job {
	return slices.Clone(j.deps)
}

// Status returns the job's current status
func (j *Job) Status() Status {
	return j.reg.Get()
}

// Running returns whether or not the current status is StatusRunning
func (j *Job) Running() bool {
	return j.Status() == StatusRunning
}

// Reached returns whether or not the job has ever been in status s
func (j *Job) Reached(s Status) bool {
	return j.reg.Reached(s)
}

// WaitFor blocks until the job has reached status s or ctx is done
func (j *Job) WaitFor(ctx context.Context, s Status) error {
	return j.reg.WaitFor(ctx, s)
}

// Wait blocks until the job reaches StatusFinish or StatusFailure and returns
// which one
func (j *Job) Wait(ctx context.Context) (Status, error) {
	return j.reg.WaitForAny(ctx, StatusFinish, StatusFailure)
}

// Pid returns the process id, or 0 if the job has not been spawned
func (j *Job) Pid() int {
	if p := j.process(); p != nil {
		return p.Pid()
	}
	return 0
}

// ExitCode returns the process's exit code and whether or not it is valid. It
// is not valid until the process has exited, nor if the process was killed by
// a signal.
func (j *Job) ExitCode() (process.ExitCode, bool) {
	if p := j.process(); p != nil {
		return p.ExitCode()
	}
	return 0, false
}

func (j *Job) process() Process {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.proc
}

func (j *Job) setStatus(s Status) {
	j.reg.set(s)
	j.log.Debug("status changed", "status", s)
	if j.onStatus != nil {
		j.onStatus(j, s)
	}
}

// Run waits for every dependency, spawns the process and classifies it as
// running, finished or failed. It returns as soon as that classification is
// known, without waiting for the process to exit. A job can only be run once,
// later calls return ErrAlreadyStarted.
//
// Errors from the Spawner are returned as is and leave the job in
// StatusStarting, so jobs depending on it will wait until their own context is
// done.
func (j *Job) Run(ctx context.Context) error {
	if !j.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	j.setStatus(StatusStarting)

	if err := j.awaitDependencies(ctx); err != nil {
		if errors.Is(err, ErrDependencyFailed) {
			j.setStatus(StatusFailure)
		}
		return err
	}

	proc, err := j.spawn(ctx)
	if err != nil {
		j.log.Error("error spawning job", "err", err)
		return err
	}

	j.mu.Lock()
	j.proc = proc
	j.mu.Unlock()

	j.log.Info("spawned", "pid", proc.Pid())

	if !proc.Exited() {
		j.setStatus(StatusRunning)
		go j.reap(proc)
		return nil
	}

	j.setStatus(exitStatus(proc))
	return nil
}

func (j *Job) spawn(ctx context.Context) (Process, error) {
	opts := j.opts
	if j.shell {
		return j.spawner.Shell(ctx, j.script, &opts)
	}
	return j.spawner.Exec(ctx, j.argv, &opts)
}

// reap publishes the terminal status once the process exits
func (j *Job) reap(proc Process) {
	<-proc.Done()
	st := exitStatus(proc)
	if code, ok := proc.ExitCode(); ok {
		j.log.Info("exited", "status", st, "exit_code", code.Int())
	} else {
		j.log.Info("exited without exit code", "status", st)
	}
	j.setStatus(st)
}

func exitStatus(proc Process) Status {
	if code, ok := proc.ExitCode(); ok && code == 0 {
		return StatusFinish
	}
	return StatusFailure
}

func (j *Job) awaitDependencies(ctx context.Context) error {
	if j.sequential {
		for _, dep := range j.deps {
			if err := j.awaitDependency(ctx, dep); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, dep := range j.deps {
		g.Go(func() error {
			return j.awaitDependency(ctx, dep)
		})
	}
	return g.Wait()
}

func (j *Job) awaitDependency(ctx context.Context, dep *Job) error {
	j.log.Debug("waiting on dependency", "dependency", dep.name, "wait_for", j.waitFor)

	reached, err := dep.reg.WaitForAny(ctx, j.gate()...)
	if err != nil {
		return err
	}

	if reached == StatusFailure && j.waitFor != StatusFailure && j.policy == FailurePropagate {
		return fmt.Errorf("%w: %s", ErrDependencyFailed, dep)
	}

	return nil
}

// gate returns the statuses that, once reached by a dependency, release this
// job. They are the WaitFor status and every status after it, with failure
// only included when the FailurePolicy allows. Failure is always last so that
// a dependency that got past WaitFor before failing is not reported as failed.
func (j *Job) gate() []Status {
	if j.waitFor == StatusFailure {
		return []Status{StatusFailure}
	}

	var ret []Status
	for _, s := range Statuses() {
		switch {
		case s.rank() < j.waitFor.rank():
		case s == StatusFailure:
			if j.policy != FailureBlock {
				ret = append(ret, s)
			}
		default:
			ret = append(ret, s)
		}
	}
	return ret
}
