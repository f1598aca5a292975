// Package resource limits the resources spent on building indexes.
//
// The Controller manages three resource types:
//
//   - Memory: Reserve the estimated footprint of a graph before building it (non-blocking, fail-fast)
//   - Concurrency: Limit how many graphs are constructed at the same time
//   - IO: Rate-limit batch downloads so they do not starve the rest of the process
//
// # Memory Management
//
// ReserveMemory is non-blocking and returns ErrMemoryLimitExceeded immediately if
// the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.ReserveMemory(estimate); err != nil {
//	    // ErrMemoryLimitExceeded - caller decides retry/backoff
//	}
//	defer rc.ReleaseMemory(estimate)
//
// # Build Slots
//
//	if err := rc.AcquireBuild(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBuild()
//
// # IO Rate Limiting
//
//	reader := resource.NewRateLimitedReader(ctx, body, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
