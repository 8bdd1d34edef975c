package realtime

import (
	"reflect"
	"sync"

	"github.com/golang/glog"
)

// Scope groups the listeners of one consumer and releases them together when
// the consumer goes away.
type Scope struct {
	name   string
	client *Client

	mu        sync.Mutex
	listeners []*Listener
	closed    bool
}

// NewScope resolves the shared client through connector. When realtime is
// unavailable the scope is inert and Available reports false.
func NewScope(name string, connector *Connector) *Scope {
	s := &Scope{name: name}
	if connector == nil {
		return s
	}
	client, err := connector.Connect()
	if err != nil {
		glog.Infof("[scope]%s realtime unavailable: %s", name, err)
		return s
	}
	s.client = client
	return s
}

func (s *Scope) Available() bool {
	return s.client != nil
}

func (s *Scope) Client() *Client {
	return s.client
}

// Listen binds handler to event on channel. deps are the values the handler
// closes over; Listener.Update rebinds when they change.
func (s *Scope) Listen(channel string, event string, handler Handler, deps ...any) *Listener {
	l := &Listener{scope: s, channel: channel, event: NormalizeEvent(event)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return l
	}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	l.bind(handler, deps)
	return l
}

// ListenPrivate is Listen on the private variant of channel.
func (s *Scope) ListenPrivate(channel string, event string, handler Handler, deps ...any) *Listener {
	return s.Listen(PrivatePrefix+channel, event, handler, deps...)
}

// Close releases every listener. Release errors are logged and dropped.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range listeners {
		l.Release()
	}
	glog.V(1).Infof("[scope]%s closed, released %d listeners", s.name, len(listeners))
}

// Listener owns at most one binding at a time.
type Listener struct {
	scope   *Scope
	channel string
	event   string

	mu      sync.Mutex
	binding *Binding
	deps    []any
	bound   bool
}

func (l *Listener) Channel() string { return l.channel }
func (l *Listener) Event() string   { return l.event }

func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.binding != nil
}

// Update replaces the handler when deps differ from the ones it was bound
// with, and reports whether it rebound.
func (l *Listener) Update(handler Handler, deps ...any) bool {
	l.mu.Lock()
	same := l.bound && reflect.DeepEqual(l.deps, deps)
	l.mu.Unlock()
	if same {
		return false
	}
	l.bind(handler, deps)
	return true
}

// Release drops the binding this listener registered, and nothing else.
func (l *Listener) Release() {
	l.mu.Lock()
	b := l.binding
	l.binding = nil
	l.bound = false
	l.mu.Unlock()
	l.release(b)
}

// bind registers the new handler before releasing the old binding so the
// channel stays subscribed across a rebind.
func (l *Listener) bind(handler Handler, deps []any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	old := l.binding
	l.binding = nil
	defer l.release(old)

	l.deps = append([]any(nil), deps...)
	// an inert or closed scope has nothing to retry
	l.bound = true
	if l.scope.client == nil {
		return
	}
	l.scope.mu.Lock()
	closed := l.scope.closed
	l.scope.mu.Unlock()
	if closed {
		return
	}

	b, err := l.scope.client.Channel(l.channel).On(l.event, handler)
	if err != nil {
		// left unbound so the next Update retries even with the same deps
		l.bound = false
		glog.V(1).Infof("[scope]%s bind %s/%s: %s", l.scope.name, l.channel, l.event, err)
		return
	}
	l.binding = b
}

func (l *Listener) release(b *Binding) {
	if b == nil {
		return
	}
	if err := b.Release(); err != nil {
		glog.V(1).Infof("[scope]%s release %s/%s: %s", l.scope.name, l.channel, l.event, err)
	}
}
