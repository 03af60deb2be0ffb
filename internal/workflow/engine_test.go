package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/pkg/apperr"
)

var testPolicy = Policy{MaxAttempts: 3, Backoff: time.Millisecond}

func TestStepRecordsAndReplaysResult(t *testing.T) {
	log := NewMemoryStepLog()
	calls := 0
	fn := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	r := NewRun("inst-1", log, nil, testPolicy)
	got, err := Step(context.Background(), r, "compute", fn)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)

	// Same instance invoked again: the recorded result is returned, fn is
	// not re-executed.
	r2 := NewRun("inst-1", log, nil, testPolicy)
	got, err = Step(context.Background(), r2, "compute", fn)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)

	// A different instance runs the step fresh.
	r3 := NewRun("inst-2", log, nil, testPolicy)
	_, err = Step(context.Background(), r3, "compute", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestStepRetriesTransientErrors(t *testing.T) {
	log := NewMemoryStepLog()
	calls := 0
	r := NewRun("inst-1", log, nil, testPolicy)

	got, err := Step(context.Background(), r, "flaky", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("status 503")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestStepTerminalErrorFailsImmediately(t *testing.T) {
	log := NewMemoryStepLog()
	calls := 0
	r := NewRun("inst-1", log, nil, testPolicy)

	_, err := Step(context.Background(), r, "doomed", func(ctx context.Context) (string, error) {
		calls++
		return "", apperr.Terminal(errors.New("bad input"))
	})
	require.Error(t, err)
	assert.True(t, apperr.IsTerminal(err))
	assert.Equal(t, 1, calls)
}

func TestStepExhaustsAttempts(t *testing.T) {
	log := NewMemoryStepLog()
	calls := 0
	r := NewRun("inst-1", log, nil, testPolicy)

	_, err := Step(context.Background(), r, "flaky", func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("status 500")
	})
	require.Error(t, err)
	assert.False(t, apperr.IsTerminal(err))
	assert.Equal(t, testPolicy.MaxAttempts, calls)
}

func TestStepResumeSkipsCompletedSteps(t *testing.T) {
	log := NewMemoryStepLog()
	firstCalls := 0
	secondFails := true

	runOnce := func() error {
		r := NewRun("inst-1", log, nil, Policy{MaxAttempts: 1, Backoff: time.Millisecond})
		_, err := Step(context.Background(), r, "first", func(ctx context.Context) (string, error) {
			firstCalls++
			return "payload", nil
		})
		if err != nil {
			return err
		}
		_, err = Step(context.Background(), r, "second", func(ctx context.Context) (bool, error) {
			if secondFails {
				return false, errors.New("status 500")
			}
			return true, nil
		})
		return err
	}

	require.Error(t, runOnce())
	assert.Equal(t, 1, firstCalls)

	// Retry with the same instance id: the first step replays from the log.
	secondFails = false
	require.NoError(t, runOnce())
	assert.Equal(t, 1, firstCalls)
}

func TestStepHonorsContextCancellation(t *testing.T) {
	log := NewMemoryStepLog()
	r := NewRun("inst-1", log, nil, Policy{MaxAttempts: 5, Backoff: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Step(ctx, r, "slow", func(ctx context.Context) (int, error) {
		return 0, errors.New("status 500")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyDefaults(t *testing.T) {
	p := Policy{}.withDefaults()
	assert.Equal(t, DefaultPolicy.MaxAttempts, p.MaxAttempts)
	assert.Equal(t, DefaultPolicy.Backoff, p.Backoff)

	p = Policy{MaxAttempts: 7, Backoff: time.Second}.withDefaults()
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Backoff)
}
