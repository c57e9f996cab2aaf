package coordinator

import (
	"context"
	"time"

	"encore.dev/rlog"
)

// safeAsync runs fn in a goroutine with its own timeout and structured error
// logging, so background generation failures are never silent. The caller's
// request context is deliberately not inherited: the caller timing out or
// disconnecting must not cancel an execution other pollers are waiting on.
func safeAsync(op string, timeout time.Duration, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			rlog.Error("async operation failed", "op", op, "error", err)
		} else {
			rlog.Debug("async operation succeeded", "op", op)
		}
	}()
}
