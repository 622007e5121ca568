package memory

import (
	"context"
	"time"
)

// delay simulates a remote backend round trip. It honors ctx cancellation so
// operation timeouts behave the same as against a real store.
type delay time.Duration

func (d delay) wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(time.Duration(d))
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
