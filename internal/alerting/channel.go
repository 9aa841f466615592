package alerting

import "context"

// Channel is one independent notification delivery mechanism. Implementations
// tag returned errors with an errkind so the dispatcher can decide whether a
// failed attempt is worth retrying.
type Channel interface {
	Name() string
	Send(ctx context.Context, event Event) error
}
