package filelock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWith_RunsAndReleases(t *testing.T) {
	dir := t.TempDir()
	l := Named("x", dir)

	ran := false
	err := l.With(context.Background(), time.Second, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	// Lock must be free again afterwards.
	l2 := Named("x", dir)
	require.NoError(t, l2.Acquire(context.Background(), time.Second))
	l2.Release()
}

func TestAcquire_TimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	l1 := Named("y", dir)
	require.NoError(t, l1.Acquire(context.Background(), time.Second))
	defer l1.Release()

	l2 := Named("y", dir)
	err := l2.Acquire(context.Background(), 50*time.Millisecond)
	require.Error(t, err)
	_, ok := err.(*ErrTimeout)
	assert.True(t, ok)
}

func TestJobAndPipelineHelpers_UseExpectedNames(t *testing.T) {
	dir := t.TempDir()
	j := Job(dir)
	assert.Equal(t, "jobs", j.name)

	p := Pipeline("abc123", dir)
	assert.Equal(t, "pipeline_abc123", p.name)
}
