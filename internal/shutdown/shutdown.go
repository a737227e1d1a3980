package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// SetupSignalHandler returns a context that is cancelled on SIGTERM or
// SIGINT, after onSignal has run. A second signal forces exit. The returned
// release func stops listening for signals.
func SetupSignalHandler(parent context.Context, log logrus.FieldLogger, onSignal func(context.Context)) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("[Signal] Received, initiating graceful shutdown...")
		case <-done:
			return
		}

		if onSignal != nil {
			onSignal(ctx)
		}
		cancel()

		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Warn("[Signal] Received again, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}
	return ctx, release
}

// Step is one named part of a shutdown sequence
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Run executes steps in order under a shared timeout. Failing steps are
// logged and do not stop the sequence. It returns false when the timeout
// expired before every step finished.
func Run(log logrus.FieldLogger, timeout time.Duration, steps ...Step) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, step := range steps {
		finished := make(chan error, 1)
		go func(step Step) {
			finished <- step.Fn(ctx)
		}(step)

		select {
		case err := <-finished:
			if err != nil {
				log.WithError(err).WithField("step", step.Name).Warn("[Shutdown] Step failed")
			} else {
				log.WithField("step", step.Name).Debug("[Shutdown] Step done")
			}
		case <-ctx.Done():
			log.WithField("step", step.Name).Error("[Shutdown] Timed out")
			return false
		}
	}
	log.Info("[Shutdown] Complete")
	return true
}
