package main

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job-runner/internal/commands"
)

func main() {
	root := newRoot()

	if err := root.ExecuteContext(context.Background()); err != nil {
		root.PrintErrln(root.ErrPrefix(), err.Error())

		if code, ok := exitCode(err); ok {
			os.Exit(code)
		}

		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := cobra.Command{
		Use:   "job-runner",
		Short: "Run external commands as jobs that start once the jobs they depend on are running",

		// errors are printed by main so that they are printed once, along with
		// the exit code of a failed job
		SilenceErrors: true,

		// flags and args are valid once this runs, any error after this point
		// comes from the jobs and is not a usage error
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SilenceUsage = true
		},
	}

	root.AddCommand(commands.Run())
	root.AddCommand(commands.Validate())

	return &root
}

// exitCoder is implemented by errors that carry the exit code of a failed job
type exitCoder interface {
	ExitCode() int
}

func exitCode(err error) (int, bool) {
	var eerr *exec.ExitError
	if errors.As(err, &eerr) {
		return eerr.ExitCode(), true
	}

	var cerr exitCoder
	if errors.As(err, &cerr) {
		return cerr.ExitCode(), true
	}

	return 0, false
}
