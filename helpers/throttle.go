package helpers

import (
	"context"
	mathrand "math/rand"
	"time"
)

// Sleep pauses for a random duration in [min, max], the polite gap between
// page requests. It returns early with ctx.Err() when the context is
// cancelled, so a Ctrl-C never waits out a nap.
func Sleep(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d = min + time.Duration(mathrand.Int63n(int64(max-min)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
