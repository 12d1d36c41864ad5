// Package context provides the lifecycle context of a checkout service
// process.
package context

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

type signalKey struct{}

type received struct {
	mutex  sync.Mutex
	signal os.Signal
}

// WithSignal creates a new context that is cancelled once one of the passed
// signals is received. The received signal is retrievable with Signal. The
// cancel return value should be called to release this function's resources
// once it is no longer in use.
func WithSignal(ctx context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	r := new(received)
	ctx, cancel := context.WithCancel(context.WithValue(ctx, signalKey{}, r))

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)
	go func() {
		defer signal.Stop(ch)

		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			r.mutex.Lock()
			r.signal = sig
			r.mutex.Unlock()
			cancel()
		}
	}()
	return ctx, cancel
}

// Signal retrieves the signal that cancelled ctx, or a context derived from
// ctx. Nil is returned if no signal has been received.
func Signal(ctx context.Context) os.Signal {
	r, ok := ctx.Value(signalKey{}).(*received)
	if !ok {
		return nil
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.signal
}
