package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/pkg/generation"
	"github.com/yallapapi/genforge/pkg/retry"
	"github.com/yallapapi/genforge/pkg/validate"
)

type stubAdapter struct {
	name        string
	submitErr   error
	pollResults []generation.PollStatus
	resultURL   string
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Submit(ctx context.Context, cfg generation.Config) (string, int, error) {
	if s.submitErr != nil {
		return "", 500, s.submitErr
	}
	return "req-1", 200, nil
}

func (s *stubAdapter) Poll(ctx context.Context, requestID string) (generation.PollStatus, string, int, error) {
	status := s.pollResults[0]
	if len(s.pollResults) > 1 {
		s.pollResults = s.pollResults[1:]
	}
	return status, s.resultURL, 200, nil
}

func newOrchestrator(t *testing.T, adapter generation.Adapter) *Orchestrator {
	registry := generation.NewRegistry()
	registry.Register("wan", adapter)

	return &Orchestrator{
		Registry:  registry,
		Validator: validate.New(),
		RetryCfg:  retry.DefaultConfig(),
		Logger:    common.NopLogger{},
		PollEvery: time.Millisecond,
		PollFor:   time.Second,
	}
}

func TestProcess_RejectsInvalidItem(t *testing.T) {
	o := newOrchestrator(t, &stubAdapter{name: "test"})
	res := o.Process(context.Background(), Item{ID: "i1", Model: "wan", Prompt: ""})
	assert.Equal(t, "failed", res.Status)
}

func TestProcess_SucceedsAfterPolling(t *testing.T) {
	adapter := &stubAdapter{
		name:        "test",
		pollResults: []generation.PollStatus{generation.StatusRunning, generation.StatusCompleted},
		resultURL:   "https://cdn.example.com/out.png",
	}
	o := newOrchestrator(t, adapter)
	res := o.Process(context.Background(), Item{ID: "i1", Model: "wan", Prompt: "a cat", Resolution: "720p", DurationSec: 5})
	require.Equal(t, "completed", res.Status)
	assert.Equal(t, "https://cdn.example.com/out.png", res.ResultURL)
}

func TestProcess_FailsOnUnknownModel(t *testing.T) {
	o := newOrchestrator(t, &stubAdapter{name: "test"})
	res := o.Process(context.Background(), Item{ID: "i1", Model: "nonexistent", Prompt: "a cat"})
	assert.Equal(t, "failed", res.Status)
}
