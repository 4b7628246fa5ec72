package selector

import (
	"context"
	"time"
)

// defaultWaitInterval is used when a non-positive poll interval is given.
const defaultWaitInterval = 2 * time.Second

// Wait polls cond at the given interval until it reports done, the condition
// returns an error, or ctx is canceled. There is no attempt cap; the overall
// deadline belongs to the caller's ctx. The condition is checked once
// immediately before any sleep.
func Wait(ctx context.Context, interval time.Duration, cond func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = defaultWaitInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := cond(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
