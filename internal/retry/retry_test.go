package retry

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Policy{MaxAttempts: 5}.Do(func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRecoversWithinBudget(t *testing.T) {
	calls := 0
	retries := 0
	p := Policy{
		MaxAttempts: 5,
		OnRetry:     func(attempt int, err error) { retries++ },
	}
	err := p.Do(func() error {
		calls++
		if calls < 4 {
			return errors.New("flaky read")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 3, retries)
}

func TestDoExhaustsBudget(t *testing.T) {
	calls := 0
	retries := 0
	p := Policy{
		MaxAttempts: 3,
		OnRetry:     func(attempt int, err error) { retries++ },
	}
	err := p.Do(func() error {
		calls++
		return errors.New("flaky read")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// The final attempt does not trigger a retry callback.
	assert.Equal(t, 2, retries)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad configuration")
	calls := 0
	p := Policy{
		MaxAttempts: 5,
		Classify:    func(err error) bool { return !errors.Is(err, permanent) },
	}
	err := p.Do(func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	err := Policy{}.Do(func() error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
