package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	m := New("test", t.TempDir())
	return m
}

func TestRecordFailure_EscalatesSchedule(t *testing.T) {
	m := newTestManager(t)
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixedNow }

	s, err := m.RecordFailure("model-a", "boom")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ConsecutiveFailures)
	assert.Equal(t, fixedNow.Add(60*time.Second), *s.CooldownUntil)

	s, err = m.RecordFailure("model-a", "boom again")
	require.NoError(t, err)
	assert.Equal(t, 2, s.ConsecutiveFailures)
	assert.Equal(t, fixedNow.Add(300*time.Second), *s.CooldownUntil)
}

func TestRecordFailure_CapsAtMaxSchedule(t *testing.T) {
	m := newTestManager(t)
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixedNow }

	var s *State
	for i := 0; i < 12; i++ {
		var err error
		s, err = m.RecordFailure("model-a", "boom")
		require.NoError(t, err)
	}
	assert.Equal(t, MaxConsecutiveFailures, s.ConsecutiveFailures)
	assert.Equal(t, fixedNow.Add(86400*time.Second), *s.CooldownUntil)
}

func TestRecordSuccess_ResetsStreakKeepsTotals(t *testing.T) {
	m := newTestManager(t)
	_, err := m.RecordFailure("model-a", "boom")
	require.NoError(t, err)
	_, err = m.RecordFailure("model-a", "boom")
	require.NoError(t, err)

	s, err := m.RecordSuccess("model-a")
	require.NoError(t, err)
	assert.Equal(t, 0, s.ConsecutiveFailures)
	assert.Nil(t, s.CooldownUntil)
	assert.Equal(t, 2, s.TotalFailures)
	assert.Equal(t, 1, s.TotalSuccesses)
}

func TestGetEligible_ExcludesInCooldown(t *testing.T) {
	m := newTestManager(t)
	_, err := m.RecordFailure("bad", "boom")
	require.NoError(t, err)

	eligible := m.GetEligible([]string{"bad", "good"})
	assert.Equal(t, []string{"good"}, eligible)
}

func TestLoad_RoundTripsPersistedState(t *testing.T) {
	dir := t.TempDir()
	m1 := New("test", dir)
	_, err := m1.RecordFailure("model-a", "boom")
	require.NoError(t, err)

	m2 := New("test", dir)
	require.NoError(t, m2.Load())
	s, ok := m2.Get("model-a")
	require.True(t, ok)
	assert.Equal(t, 1, s.ConsecutiveFailures)
}
