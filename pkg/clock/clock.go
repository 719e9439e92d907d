package clock

import (
	"context"
	"time"
)

// Clock is an interface around the standard library's time handling
// functions. It has been added to aid unit testing, and to allow
// deadlines to be injected into operations that call into external
// systems.
type Clock interface {
	// Return the current time of day. Equivalent to time.Now().
	Now() time.Time

	// Create a Context object that automatically cancels after a
	// certain amount of time has passed. Equivalent to
	// context.WithTimeout().
	NewContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc)
}
