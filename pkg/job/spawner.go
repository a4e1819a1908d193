package job

import (
	"context"

	"github.com/joshuarubin/job-runner/pkg/process"
)

// Process is the view of a spawned process that a Job needs
type Process interface {
	Pid() int
	Done() <-chan struct{}
	Exited() bool
	ExitCode() (process.ExitCode, bool)
}

// Spawner creates processes for jobs, either through a shell or by executing a
// program directly. Options are passed through unmodified.
type Spawner interface {
	Shell(ctx context.Context, script string, opts *process.Options) (Process, error)
	Exec(ctx context.Context, argv []string, opts *process.Options) (Process, error)
}

// ensure the process types implement the interfaces
var (
	_ Process = (*process.Process)(nil)
	_ Spawner = processSpawner{}
)

// processSpawner adapts process.Spawner to the Spawner interface
type processSpawner struct {
	process.Spawner
}

func (s processSpawner) Shell(ctx context.Context, script string, opts *process.Options) (Process, error) {
	p, err := s.Spawner.Shell(ctx, script, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s processSpawner) Exec(ctx context.Context, argv []string, opts *process.Options) (Process, error) {
	p, err := s.Spawner.Exec(ctx, argv, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}
