// Package async runs fire-and-forget background work started from request
// handlers.
//
// SafeGo recovers panics, enforces a timeout and logs failures through the
// logger carried in the context:
//
//	async.SafeGo(r.Context(), 30*time.Second, "delete replaced image", func(ctx context.Context) error {
//		return images.Delete(ctx, previousKey)
//	})
//
// The task is detached from the request's cancellation so it survives the
// response being written.
package async
