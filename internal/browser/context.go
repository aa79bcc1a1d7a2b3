// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from primary that is canceled when either
// primary or secondary is done. primary carries the CDP connection values, so
// it must be the base; secondary usually carries an operational deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// valueOnlyContext inherits values from its parent but ignores the parent's
// deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (valueOnlyContext) Done() <-chan struct{}       { return nil }
func (valueOnlyContext) Err() error                  { return nil }

// Detach returns a context carrying the CDP target values of ctx that
// survives ctx's cancellation. Used for teardown work that must still reach
// the browser.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
