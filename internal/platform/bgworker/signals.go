package bgworker

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// HandleSignals routes SIGHUP to a reload request and SIGTERM/SIGINT to a
// terminate request until ctx is done or the returned stop func is called.
func HandleSignals(ctx context.Context, rt *Runtime, taskName string, logger *log.Logger) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					logger.Printf("INFO: %s: received sighup", taskName)
					rt.RequestReload()
					continue
				}
				logger.Printf("INFO: %s: received %s, shutting down", taskName, sig)
				rt.RequestTerminate()
			case <-ctx.Done():
				signal.Stop(sigCh)
				return
			case <-done:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
