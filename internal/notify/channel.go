package notify

import "context"

// Channel delivers one payload over one transport.
// Send must return once ctx is done.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, p *Payload) error
}
