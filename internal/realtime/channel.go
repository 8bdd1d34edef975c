package realtime

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Channel is a named handle on the shared connection.
type Channel struct {
	client *Client
	name   string
}

func (ch *Channel) Name() string { return ch.name }

// On registers h for event. The returned binding is owned by the caller and
// must be released; releasing it never affects other bindings.
func (ch *Channel) On(event string, h Handler) (*Binding, error) {
	return ch.client.bind(ch.name, event, h)
}

// Off releases a binding created on this channel.
func (ch *Channel) Off(b *Binding) error {
	if b == nil {
		return nil
	}
	if b.channel != ch.name {
		return fmt.Errorf("binding %s belongs to %s, not %s", b.id, b.channel, ch.name)
	}
	return b.Release()
}

// Binding is one registered (channel, event, handler) triple.
type Binding struct {
	id      ulid.ULID
	client  *Client
	channel string
	event   string
	handler Handler
}

func (b *Binding) ID() string      { return b.id.String() }
func (b *Binding) Channel() string { return b.channel }
func (b *Binding) Event() string   { return b.event }

// Release deregisters the binding. Releasing twice is a no-op.
func (b *Binding) Release() error {
	return b.client.unbind(b)
}
