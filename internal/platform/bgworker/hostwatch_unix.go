//go:build unix

package bgworker

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// WatchHost returns a channel that is closed once process pid has gone
// away. If pid is our parent, being re-parented also counts as its death.
// A pid of 1 or less is never watched.
func WatchHost(ctx context.Context, pid int, interval time.Duration) <-chan struct{} {
	dead := make(chan struct{})
	if pid <= 1 {
		return dead
	}
	isParent := unix.Getppid() == pid

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !hostAlive(pid, isParent) {
					close(dead)
					return
				}
			}
		}
	}()
	return dead
}

func hostAlive(pid int, isParent bool) bool {
	if isParent && unix.Getppid() != pid {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
