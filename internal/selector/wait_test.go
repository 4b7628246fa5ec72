package selector

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitImmediateSuccess(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("condition called %d times, expected 1", calls)
	}
}

func TestWaitPollsUntilTrue(t *testing.T) {
	calls := 0
	err := Wait(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		calls++
		return calls >= 4, nil
	})
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if calls != 4 {
		t.Errorf("condition called %d times, expected 4", calls)
	}
}

func TestWaitPropagatesConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := Wait(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected condition error, got %v", err)
	}
}

func TestWaitStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Wait(ctx, time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}
