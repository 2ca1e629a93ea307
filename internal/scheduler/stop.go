package scheduler

import (
	"context"
	"sync/atomic"
)

type stopKey struct{}

// StopRequested reports whether an administrator asked the job running
// under ctx to stop. Long handlers check it between units of work.
func StopRequested(ctx context.Context) bool {
	flag, ok := ctx.Value(stopKey{}).(*atomic.Bool)
	return ok && flag.Load()
}
