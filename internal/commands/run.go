package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job-runner/internal/config"
	"github.com/joshuarubin/job-runner/internal/graph"
	"github.com/joshuarubin/job-runner/internal/server"
)

type run struct {
	cfg    config.Config
	server server.Config
}

func Run() *cobra.Command {
	var r run

	cmd := cobra.Command{
		Use:   "run [flags]",
		Short: "Run every job in a job graph file, each one starting once its dependencies are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	r.cfg.Flags(&cmd)
	r.server.Flags(&cmd)

	return &cmd
}

func (r *run) run(ctx context.Context, stdout, stderr io.Writer) error {
	log, err := r.cfg.Logger(stderr)
	if err != nil {
		return err
	}

	env, err := r.cfg.Env()
	if err != nil {
		return err
	}

	f, err := graph.Load(r.cfg.File)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	opts := graph.BuildOptions{
		Logger:     log,
		Env:        env,
		Stdout:     r.cfg.Output(stdout),
		Stderr:     r.cfg.Output(stderr),
		Sequential: r.cfg.Sequential,
	}

	var srv *server.Server
	if r.server.Enabled() {
		if srv, err = r.startServer(log); err != nil {
			return err
		}
		defer gracefulStop(srv, r.server.ShutdownTimeout, log)
		opts.OnStatus = srv.SetJobStatus
	}

	g, err := graph.Build(f, &opts)
	if err != nil {
		return err
	}

	if srv != nil {
		for _, j := range g.Jobs() {
			srv.SetJobStatus(j, j.Status())
		}
	}

	runErr := g.Run(ctx)
	if runErr != nil {
		log.Error("error running jobs", "err", runErr)
	}

	waitErr := g.Wait(ctx)

	if err = summary(stdout, g); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	return waitErr
}

func (r *run) startServer(log *slog.Logger) (*server.Server, error) {
	srv, err := server.New(&r.server)
	if err != nil {
		return nil, err
	}

	lis, err := srv.Listen()
	if err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error("health server stopped", "err", err)
		}
	}()

	return srv, nil
}

func gracefulStop(srv *server.Server, timeout time.Duration, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)
		srv.GracefulStop()
	}()

	select {
	case <-done:
		log.Debug("health server shutdown gracefully")
	case <-ctx.Done():
		log.Warn("timed out waiting for health server to shutdown")
		srv.Stop()
	}
}

// summary writes one line per job with its final status and exit code
func summary(w io.Writer, g *graph.Graph) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "JOB\tSTATUS\tEXIT CODE\tID")

	for _, j := range g.Jobs() {
		st, err := g.JobStatus(j.ID())
		if err != nil {
			return err
		}

		code := "-"
		if st.ExitCode != nil {
			code = fmt.Sprint(st.ExitCode.Int())
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Name, st.Status, code, j.ID())
	}

	return tw.Flush()
}
