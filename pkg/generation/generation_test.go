package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }
func (s stubAdapter) Submit(ctx context.Context, cfg Config) (string, int, error) {
	return "req-1", 200, nil
}
func (s stubAdapter) Poll(ctx context.Context, requestID string) (PollStatus, string, int, error) {
	return StatusCompleted, "https://example.com/out.mp4", 200, nil
}

func TestRegistry_ResolveKnownModel(t *testing.T) {
	r := NewRegistry()
	r.Register("wan", stubAdapter{name: "fal"})

	a, err := r.Resolve("wan")
	require.NoError(t, err)
	assert.Equal(t, "fal", a.Name())
}

func TestRegistry_ResolveUnknownModelErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("nonexistent")
	require.Error(t, err)
}
