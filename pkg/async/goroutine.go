package async

import (
	"context"
	"time"

	"github.com/platinummonkey/pantry/pkg/observability"
)

// SafeGo executes fn in a goroutine with:
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// The task keeps the values of parentCtx (request id, logger, trace) but not
// its cancellation, so work scheduled from a handler outlives the response.
// The returned channel is closed when the task has finished.
//
// Example:
//
//	SafeGo(r.Context(), 30*time.Second, "delete replaced image", func(ctx context.Context) error {
//	    return images.Delete(ctx, previous)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	logger := observability.FromContext(parentCtx).WithField("task", taskName)

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
		defer cancel()

		defer observability.RecoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			// Logged only; the caller has already moved on
			logger.WithError(err).Error("background task failed")
		}
	}()

	return done
}
