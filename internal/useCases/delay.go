package useCases

import (
	"context"
	"math/rand"
	"time"
)

// randomDelay ждёт равномерно случайное время из [min, max]; прерывается отменой ctx
func randomDelay(ctx context.Context, min, max time.Duration) error {
	wait := min
	if delta := max - min; delta > 0 {
		wait += time.Duration(rand.Int63n(int64(delta) + 1))
	}
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
