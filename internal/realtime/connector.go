package realtime

import (
	"sync"

	"github.com/golang/glog"
)

// Connector owns the process-wide client. It is created by main and passed
// to every consumer; nothing in this package holds a global connection.
type Connector struct {
	settings   Settings
	authorizer Authorizer

	mu       sync.Mutex
	client   *Client
	shutdown bool
}

func NewConnector(settings Settings, authorizer Authorizer) *Connector {
	return &Connector{settings: settings, authorizer: authorizer}
}

func (c *Connector) Settings() Settings { return c.settings }

// Connect returns the shared client, creating it on first call. It returns
// (nil, nil) when no key is configured: realtime is disabled and callers fall
// back to polling. Connecting happens in the background and is retried by
// the client itself.
func (c *Connector) Connect() (*Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return nil, ErrClosed
	}
	if c.client != nil {
		return c.client, nil
	}
	if !c.settings.Enabled() {
		glog.V(1).Infof("[rt]realtime disabled, no key configured")
		return nil, nil
	}
	client, err := NewClient(c.settings, c.authorizer)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Shutdown closes the client, if any. Later Connect calls return ErrClosed.
func (c *Connector) Shutdown() {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.shutdown = true
	c.mu.Unlock()

	if client != nil {
		client.Close()
	}
}
