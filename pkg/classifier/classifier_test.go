package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_StatusCodePrecedence(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		want   ErrorType
	}{
		{"rate limit status", errors.New("boom"), 429, RateLimit},
		{"invalid input status", errors.New("boom"), 400, InvalidInput},
		{"permanent status", errors.New("boom"), 401, Permanent},
		{"transient status", errors.New("boom"), 503, Transient},
		{"unmapped status falls to substring", errors.New("request timeout occurred"), 418, Network},
		{"no signal at all", nil, 0, Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ce := Classify(tc.err, tc.status)
			assert.Equal(t, tc.want, ce.Type)
		})
	}
}

func TestClassify_ContextDeadlineIsNetwork(t *testing.T) {
	ce := Classify(context.DeadlineExceeded, 0)
	require.Equal(t, Network, ce.Type)
	assert.True(t, ce.Retryable)
	assert.Equal(t, 5, ce.MaxRetries)
}

func TestClassify_SubstringFallback(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorType
	}{
		{"connection timeout", Network},
		{"rate limit exceeded", RateLimit},
		{"invalid request body", InvalidInput},
		{"unauthorized access", Permanent},
		{"something unexpected", Unknown},
	}
	for _, tc := range cases {
		ce := Classify(errors.New(tc.msg), 0)
		assert.Equal(t, tc.want, ce.Type, tc.msg)
	}
}

func TestRetryDelay_ExponentialWithCap(t *testing.T) {
	ce := Classify(errors.New("rate limited"), 429)
	require.Equal(t, RateLimit, ce.Type)

	assert.Equal(t, 30*time.Second, ce.RetryDelay(1))
	assert.Equal(t, 60*time.Second, ce.RetryDelay(2))
	assert.Equal(t, 120*time.Second, ce.RetryDelay(3))
	// 30 * 2^4 = 480s, must be capped at 300s
	assert.Equal(t, 300*time.Second, ce.RetryDelay(5))
}

func TestNonRetryableTypesCarryZeroRetries(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		ce := Classify(errors.New("x"), status)
		assert.False(t, ce.Retryable, status)
		assert.Equal(t, 0, ce.MaxRetries, status)
	}
}
