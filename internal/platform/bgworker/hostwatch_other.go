//go:build !unix

package bgworker

import (
	"context"
	"time"
)

// WatchHost is not supported on this platform; the host is never reported dead.
func WatchHost(ctx context.Context, pid int, interval time.Duration) <-chan struct{} {
	return make(chan struct{})
}
