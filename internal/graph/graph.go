// Package graph builds and runs a set of jobs described by a File. There is no
// scheduler: every job is run concurrently and the ordering comes from each
// job waiting on its own dependencies.
package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/joshuarubin/job-runner/pkg/job"
	"github.com/joshuarubin/job-runner/pkg/process"
)

var (
	// ErrNoJobs is returned by Build when the file has no jobs
	ErrNoJobs = errors.New("no jobs")

	// ErrMissingName is returned by Build when a job has no name
	ErrMissingName = errors.New("job name is required")

	// ErrDuplicateJob is returned by Build when two jobs share a name
	ErrDuplicateJob = errors.New("duplicate job")

	// ErrUnknownDependency is returned by Build when a job needs a job that
	// was not declared before it
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrJobNotFound is returned when looking up a job that doesn't exist
	ErrJobNotFound = errors.New("job not found")
)

// BuildOptions are applied to every job created by Build
type BuildOptions struct {
	Spawner    job.Spawner              // defaults to the process package
	Logger     *slog.Logger             // defaults to slog.Default()
	OnStatus   func(*job.Job, job.Status)
	Env        []string                 // in the form of "key=value", applied before the file's env
	Stdout     io.Writer                // nil discards output
	Stderr     io.Writer                // nil discards output
	Sequential bool                     // await dependencies one at a time
}

// Graph is an ordered set of jobs, safe for concurrent use
type Graph struct {
	mu     sync.RWMutex
	jobs   []*job.Job
	byName map[string]*job.Job
	byID   map[job.ID]*job.Job
}

// Build creates a job for every JobSpec in f, in order, wiring each one to the
// jobs it needs
func Build(f *File, opts *BuildOptions) (*Graph, error) {
	if opts == nil {
		opts = &BuildOptions{}
	}

	if len(f.Jobs) == 0 {
		return nil, ErrNoJobs
	}

	g := Graph{
		byName: map[string]*job.Job{},
		byID:   map[job.ID]*job.Job{},
	}

	for _, spec := range f.Jobs {
		j, err := g.build(f, &spec, opts)
		if err != nil {
			if spec.Name == "" {
				return nil, err
			}
			return nil, fmt.Errorf("job %q: %w", spec.Name, err)
		}

		g.jobs = append(g.jobs, j)
		g.byName[j.Name()] = j
		g.byID[j.ID()] = j
	}

	return &g, nil
}

func (g *Graph) build(f *File, spec *JobSpec, opts *BuildOptions) (*job.Job, error) {
	if spec.Name == "" {
		return nil, ErrMissingName
	}

	if _, ok := g.byName[spec.Name]; ok {
		return nil, ErrDuplicateJob
	}

	deps := make([]*job.Job, 0, len(spec.Needs))
	for _, name := range spec.Needs {
		dep, ok := g.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDependency, name)
		}
		deps = append(deps, dep)
	}

	var waitFor job.Status
	if spec.WaitFor != "" {
		var err error
		if waitFor, err = job.ParseStatus(spec.WaitFor); err != nil {
			return nil, err
		}
	}

	policy, err := job.ParseFailurePolicy(spec.OnFailure)
	if err != nil {
		return nil, err
	}

	dir := spec.Dir
	if dir != "" && f.dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(f.dir, dir)
	}

	env := append([]string{}, opts.Env...)
	env = append(env, environ(f.Env)...)
	env = append(env, environ(spec.Env)...)

	cfg := job.Config{
		Name:         spec.Name,
		Dependencies: deps,
		Spawn: process.Options{
			Dir:     dir,
			Env:     env,
			Stdout:  opts.Stdout,
			Stderr:  opts.Stderr,
			Shell:   f.Shell,
			Isolate: spec.Isolate,
		},
		Spawner:       opts.Spawner,
		WaitFor:       waitFor,
		FailurePolicy: policy,
		Sequential:    opts.Sequential,
		Logger:        opts.Logger,
		OnStatus:      opts.OnStatus,
	}

	if spec.Shell {
		return job.NewShell(spec.Run.Script(), &cfg)
	}

	argv, err := spec.Run.Argv()
	if err != nil {
		return nil, err
	}

	return job.New(argv, &cfg)
}

// environ converts env to "key=value" pairs sorted by key
func environ(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, k+"="+env[k])
	}
	return ret
}

// Jobs returns the jobs in the order they were declared
func (g *Graph) Jobs() []*job.Job {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ret := make([]*job.Job, len(g.jobs))
	copy(ret, g.jobs)
	return ret
}

// Job returns the job with the given name
func (g *Graph) Job(name string) (*job.Job, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	j, ok := g.byName[name]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// JobByID returns the job with the given ID
func (g *Graph) JobByID(id job.ID) (*job.Job, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	j, ok := g.byID[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// StatusResponse groups the status and optional exit code of a job
type StatusResponse struct {
	Name   string
	Status job.Status

	// ExitCode is optional since, in the case the job is still running or was
	// killed, it may not have one
	ExitCode *process.ExitCode
}

// JobStatus returns the status and exit code, if any, of the job identified by
// id. If the job does not exist ErrJobNotFound will be returned.
func (g *Graph) JobStatus(id job.ID) (*StatusResponse, error) {
	j, err := g.JobByID(id)
	if err != nil {
		return nil, err
	}

	resp := StatusResponse{
		Name:   j.Name(),
		Status: j.Status(),
	}

	if code, ok := j.ExitCode(); ok {
		resp.ExitCode = &code
	}

	return &resp, nil
}

// Run runs every job concurrently and returns once each of them has been
// spawned, or has failed to be. The first spawn error cancels the context
// given to the other jobs, so that jobs waiting on a job that could not be
// spawned return instead of waiting forever.
//
// A job that fails because of a failed dependency is not an error here. It is
// already in StatusFailure and reported by Wait, and the jobs that don't
// depend on it keep running.
func (g *Graph) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for _, j := range g.Jobs() {
		eg.Go(func() error {
			err := j.Run(ctx)
			if err == nil || errors.Is(err, job.ErrDependencyFailed) {
				return nil
			}
			return fmt.Errorf("job %s: %w", j, err)
		})
	}

	return eg.Wait()
}

// JobFailedError is returned by Wait for every job that ended in failure
type JobFailedError struct {
	Name string
	Code *process.ExitCode // nil when the job was never spawned or was killed
}

func (e *JobFailedError) Error() string {
	if e.Code == nil {
		return fmt.Sprintf("job %s failed", e.Name)
	}
	return fmt.Sprintf("job %s failed with exit code %d", e.Name, e.Code.Int())
}

// ExitCode returns the exit code of the failed job, or 1 when there isn't one
func (e *JobFailedError) ExitCode() int {
	if e.Code == nil || *e.Code == 0 {
		return 1
	}
	return e.Code.Int()
}

// Wait blocks until every job that got past starting has finished or failed.
// Jobs that never left ready or starting are skipped. A *JobFailedError is
// collected for every failed job.
func (g *Graph) Wait(ctx context.Context) error {
	var result *multierror.Error

	for _, j := range g.Jobs() {
		switch j.Status() {
		case job.StatusReady, job.StatusStarting:
			continue
		}

		st, err := j.Wait(ctx)
		if err != nil {
			return err
		}

		if st != job.StatusFailure {
			continue
		}

		ferr := JobFailedError{Name: j.Name()}
		if code, ok := j.ExitCode(); ok {
			ferr.Code = &code
		}
		result = multierror.Append(result, &ferr)
	}

	return result.ErrorOrNil()
}
