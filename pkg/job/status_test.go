package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("names", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)
		require := require.New(t)

		names := []string{"ready", "starting", "running", "stopping", "finish", "failure"}
		statuses := Statuses()
		require.Len(statuses, len(names))

		for i, st := range statuses {
			assert.True(st.Valid())
			assert.Equal(names[i], st.String())

			parsed, err := ParseStatus(names[i])
			require.NoError(err)
			assert.Equal(st, parsed)
		}

		parsed, err := ParseStatus("RUNNING")
		require.NoError(err)
		assert.Equal(StatusRunning, parsed)
	})

	t.Run("zero-value-is-ready", func(t *testing.T) {
		t.Parallel()
		var st Status
		assert.Equal(t, StatusReady, st)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)

		_, err := ParseStatus("stopped")
		assert.ErrorIs(err, ErrUnknownStatus)

		assert.False(Status(-1).Valid())
		assert.False(numStatuses.Valid())
		assert.Equal("Status(42)", Status(42).String())
	})

	t.Run("terminal", func(t *testing.T) {
		t.Parallel()
		assert := assert.New(t)

		for _, st := range Statuses() {
			assert.Equal(st == StatusFinish || st == StatusFailure, st.Terminal(), st.String())
		}
	})
}

func TestFailurePolicy(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	require := require.New(t)

	for _, p := range []FailurePolicy{FailureBlock, FailurePropagate, FailureIgnore} {
		parsed, err := ParseFailurePolicy(p.String())
		require.NoError(err)
		assert.Equal(p, parsed)
	}

	p, err := ParseFailurePolicy("")
	require.NoError(err)
	assert.Equal(FailureBlock, p)

	_, err = ParseFailurePolicy("retry")
	require.ErrorIs(err, ErrUnknownFailurePolicy)
}
