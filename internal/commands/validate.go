package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/job-runner/internal/graph"
	"github.com/joshuarubin/job-runner/pkg/job"
	"github.com/joshuarubin/job-runner/pkg/process"
)

type validate struct {
	file string
}

func Validate() *cobra.Command {
	var v validate

	cmd := cobra.Command{
		Use:   "validate [flags]",
		Short: "Check a job graph file and print its jobs without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return v.validate(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&v.file, "file", "f", "jobs.yaml", "job graph file")

	return &cmd
}

func (v *validate) validate(w io.Writer) error {
	f, err := graph.Load(v.file)
	if err != nil {
		return err
	}

	g, err := graph.Build(f, nil)
	if err != nil {
		return err
	}

	for _, j := range g.Jobs() {
		fmt.Fprintf(w, "%s: %s\n", j, describe(j, f.Shell))
		for _, dep := range j.Dependencies() {
			fmt.Fprintf(w, "  needs %s\n", dep)
		}
	}

	return nil
}

// describe returns the command line of j as it will be spawned
func describe(j *job.Job, shell string) string {
	if !j.Shell() {
		return strings.Join(j.Command(), " ")
	}
	if shell == "" {
		shell = process.DefaultShell
	}
	return fmt.Sprintf("%s -c %q", shell, j.Command()[0])
}
