// Package config contains the command line configuration of job-runner
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Log contains the logging configuration passed in via cli flags
type Log struct {
	Level  string
	Format string
}

// Config contains all configuration passed in via cli flags
type Config struct {
	File       string
	EnvFiles   []string
	Timeout    time.Duration
	Sequential bool
	Quiet      bool
	Log        Log
}

// ErrInvalidLogFormat is returned by Logger for formats other than text and
// json
var ErrInvalidLogFormat = errors.New("invalid log format")

// Flags binds the configuration to cmd's flags
func (c *Config) Flags(cmd *cobra.Command) {
	const fileFlag = "file"
	cmd.Flags().StringVarP(&c.File, fileFlag, "f", "jobs.yaml", "job graph file")

	cmd.Flags().StringSliceVar(&c.EnvFiles, "env-file", nil, "dotenv file(s) whose variables are added to every job's environment")
	cmd.Flags().DurationVar(&c.Timeout, "timeout", 0, "give up waiting on jobs after this long, 0 waits forever")
	cmd.Flags().BoolVar(&c.Sequential, "sequential", false, "wait on each job's dependencies one at a time, in order")
	cmd.Flags().BoolVarP(&c.Quiet, "quiet", "q", false, "discard the output of jobs")

	c.LogFlags(cmd)
}

// LogFlags binds only the logging configuration to cmd's flags
func (c *Config) LogFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Log.Level, "log-level", "info", "log level: debug, info, warn or error")
	cmd.Flags().StringVar(&c.Log.Format, "log-format", "text", "log format: text or json")
}

// Logger returns a logger writing to w as configured
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, err
	}

	opts := slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Log.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, &opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, &opts)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
}

// Env reads the configured dotenv files and returns their variables in the
// form of "key=value", sorted by key. Later files override earlier ones.
func (c *Config) Env() ([]string, error) {
	if len(c.EnvFiles) == 0 {
		return nil, nil
	}

	vars := map[string]string{}
	for _, name := range c.EnvFiles {
		m, err := godotenv.Read(name)
		if err != nil {
			return nil, fmt.Errorf("error reading env file %s: %w", name, err)
		}
		for k, v := range m {
			vars[k] = v
		}
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ret := make([]string, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, k+"="+vars[k])
	}
	return ret, nil
}

// Output returns where job output meant for w should be written
func (c *Config) Output(w io.Writer) io.Writer {
	if c.Quiet {
		return io.Discard
	}
	return w
}
