package scheduler

import (
	"context"
	"time"
)

const baseRetryDelay = time.Second

// sleep is swappable in tests.
var sleep = time.Sleep

// backoffDelay doubles with each retry: 1s, 2s, 4s, ...
func backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return baseRetryDelay << (attempt - 1)
}

func waitFor(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sleep(d)
	return ctx.Err()
}
