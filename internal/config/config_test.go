package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags", func(t *testing.T) {
		t.Parallel()
		require := require.New(t)
		assert := assert.New(t)

		var c Config
		cmd := cobra.Command{Use: "test"}
		c.Flags(&cmd)

		require.NoError(cmd.ParseFlags([]string{
			"-f", "graph.yaml",
			"--env-file", "a.env,b.env",
			"--timeout", "1m",
			"--sequential",
			"--log-level", "debug",
			"--log-format", "json",
		}))

		assert.Equal("graph.yaml", c.File)
		assert.Equal([]string{"a.env", "b.env"}, c.EnvFiles)
		assert.Equal("1m0s", c.Timeout.String())
		assert.True(c.Sequential)
		assert.Equal("debug", c.Log.Level)
		assert.Equal("json", c.Log.Format)
	})

	t.Run("logger", func(t *testing.T) {
		t.Parallel()
		require := require.New(t)
		assert := assert.New(t)

		var buf bytes.Buffer
		c := Config{Log: Log{Level: "warn", Format: "json"}}
		l, err := c.Logger(&buf)
		require.NoError(err)

		l.Info("hidden")
		l.Warn("shown", "job", "a")
		assert.NotContains(buf.String(), "hidden")
		assert.Contains(buf.String(), `"msg":"shown"`)
		assert.Contains(buf.String(), `"job":"a"`)

		c.Log.Format = "xml"
		_, err = c.Logger(&buf)
		require.ErrorIs(err, ErrInvalidLogFormat)

		c.Log = Log{Level: "loud"}
		_, err = c.Logger(&buf)
		require.Error(err)
	})

	t.Run("env-files", func(t *testing.T) {
		t.Parallel()
		require := require.New(t)
		assert := assert.New(t)

		dir := t.TempDir()
		a := filepath.Join(dir, "a.env")
		b := filepath.Join(dir, "b.env")
		require.NoError(os.WriteFile(a, []byte("B=1\nA=first\n"), 0o600))
		require.NoError(os.WriteFile(b, []byte("# comment\nA=second\n"), 0o600))

		c := Config{EnvFiles: []string{a, b}}
		env, err := c.Env()
		require.NoError(err)
		assert.Equal([]string{"A=second", "B=1"}, env)

		c.EnvFiles = append(c.EnvFiles, filepath.Join(dir, "missing.env"))
		_, err = c.Env()
		require.ErrorIs(err, os.ErrNotExist)

		env, err = (&Config{}).Env()
		require.NoError(err)
		assert.Nil(env)
	})

	t.Run("output", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, io.Discard, (&Config{Quiet: true}).Output(os.Stderr))
		assert.Equal(t, os.Stderr, (&Config{}).Output(os.Stderr))
	})
}
