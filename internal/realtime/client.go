package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

const SendBufferSize = 32

var (
	ErrClosed       = errors.New("realtime client closed")
	ErrNotConnected = errors.New("realtime not connected")
)

// Handler receives the decoded payload of one event.
type Handler func(data []byte)

// Client keeps one websocket to the broker open, reconnecting as needed, and
// fans incoming events out to bindings. Channels are subscribed while at least
// one binding exists for them.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	url        string
	settings   Settings
	authorizer Authorizer
	dialer     *websocket.Dialer

	mu       sync.Mutex
	channels map[string]*channelState
	socketID string
	out      chan []byte
	ready    chan struct{}
	closed   bool

	done chan struct{}
}

type channelState struct {
	name       string
	bindings   map[ulid.ULID]*Binding
	subscribed bool
}

func NewClient(settings Settings, authorizer Authorizer) (*Client, error) {
	u, err := settings.URL()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ctx:        ctx,
		cancel:     cancel,
		url:        u,
		settings:   settings,
		authorizer: authorizer,
		dialer:     &websocket.Dialer{HandshakeTimeout: settings.HandshakeTimeout},
		channels:   map[string]*channelState{},
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.run()
	return c, nil
}

func (c *Client) URL() string { return c.url }

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out != nil
}

func (c *Client) SocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

// WaitConnected blocks until the broker has accepted the connection.
func (c *Client) WaitConnected(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	ready := c.ready
	c.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Channel returns a handle for name. Handles for the same name share state.
func (c *Client) Channel(name string) *Channel {
	return &Channel{client: c, name: name}
}

func (c *Client) PrivateChannel(name string) *Channel {
	return c.Channel(PrivatePrefix + name)
}

// Close tears down the connection and drops every binding.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	c.channels = map[string]*channelState{}
	c.mu.Unlock()

	c.cancel()
	<-c.done
	glog.V(1).Infof("[rt]closed %s", c.url)
}

func (c *Client) run() {
	defer close(c.done)

	for {
		ws, socketID, err := c.connect()
		if err != nil {
			glog.Infof("[rt]connect %s error = %s", c.url, err)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.settings.ReconnectTimeout):
				continue
			}
		}

		glog.V(1).Infof("[rt]connected %s socket=%s", c.url, socketID)
		c.handle(ws, socketID)

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.settings.ReconnectTimeout):
		}
	}
}

func (c *Client) connect() (*websocket.Conn, string, error) {
	ws, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		return nil, "", err
	}

	ws.SetReadDeadline(time.Now().Add(c.settings.AuthTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, "", err
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		ws.Close()
		return nil, "", err
	}
	switch m.Event {
	case EventConnectionEstablished:
		var est ConnectionEstablished
		if err := m.Decode(&est); err != nil || est.SocketID == "" {
			ws.Close()
			return nil, "", errors.New("bad connection_established payload")
		}
		return ws, est.SocketID, nil
	case EventError:
		var e ErrorData
		_ = m.Decode(&e)
		ws.Close()
		return nil, "", errors.New("broker refused connection: " + e.Message)
	default:
		ws.Close()
		return nil, "", errors.New("unexpected first event " + m.Event)
	}
}

func (c *Client) handle(ws *websocket.Conn, socketID string) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(c.ctx)
	defer handleCancel()

	out := make(chan []byte, SendBufferSize)

	c.mu.Lock()
	c.socketID = socketID
	c.out = out
	close(c.ready)
	pending := make([]string, 0, len(c.channels))
	for name := range c.channels {
		pending = append(pending, name)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.socketID = ""
		c.out = nil
		c.ready = make(chan struct{})
		for _, st := range c.channels {
			st.subscribed = false
		}
		c.mu.Unlock()
	}()

	go func() {
		defer handleCancel()

		for {
			select {
			case <-handleCtx.Done():
				return
			case message := <-out:
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
					glog.Infof("[rt]-> error = %s", err)
					return
				}
				glog.V(2).Infof("[rt]-> %s", message)
			case <-time.After(c.settings.PingTimeout):
				ping, _ := NewMessage(EventPing, "", map[string]any{})
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, ping); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer handleCancel()

		for {
			ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
			_, data, err := ws.ReadMessage()
			if err != nil {
				select {
				case <-handleCtx.Done():
				default:
					glog.Infof("[rt]<- error = %s", err)
				}
				return
			}
			c.dispatch(out, data)
		}
	}()

	go func() {
		for _, name := range pending {
			c.subscribe(handleCtx, name)
		}
	}()

	<-handleCtx.Done()
}

func (c *Client) dispatch(out chan []byte, data []byte) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		glog.Infof("[rt]<- undecodable frame: %s", err)
		return
	}

	switch m.Event {
	case EventPing:
		pong, _ := NewMessage(EventPong, "", map[string]any{})
		enqueue(out, pong)
		return
	case EventPong, EventConnectionEstablished:
		return
	case EventSubscriptionSucceeded:
		glog.V(1).Infof("[rt]subscribed %s", m.Channel)
		return
	case EventError:
		var e ErrorData
		_ = m.Decode(&e)
		glog.Infof("[rt]broker error %d: %s", e.Code, e.Message)
		return
	}
	if strings.HasPrefix(m.Event, "pusher:") || strings.HasPrefix(m.Event, "pusher_internal:") {
		glog.V(2).Infof("[rt]<- ignored %s", m.Event)
		return
	}

	event := NormalizeEvent(m.Event)
	handlers := c.handlers(m.Channel, event)
	glog.V(2).Infof("[rt]<- %s %s handlers=%d", m.Channel, event, len(handlers))
	payload := m.Payload()
	for _, h := range handlers {
		invoke(m.Channel, event, h, payload)
	}
}

func invoke(channel string, event string, h Handler, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			glog.Infof("[rt]handler %s/%s panic: %v", channel, event, r)
		}
	}()
	h(payload)
}

func (c *Client) handlers(channel string, event string) []Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.channels[channel]
	if st == nil {
		return nil
	}
	out := make([]Handler, 0, len(st.bindings))
	for _, b := range st.bindings {
		if b.event == event {
			out = append(out, b.handler)
		}
	}
	return out
}

func (c *Client) subscribe(ctx context.Context, name string) {
	c.mu.Lock()
	st := c.channels[name]
	socketID, out := c.socketID, c.out
	if st == nil || st.subscribed || out == nil {
		c.mu.Unlock()
		return
	}
	st.subscribed = true
	c.mu.Unlock()

	data := SubscribeData{Channel: name}
	if IsPrivate(name) {
		if c.authorizer == nil {
			glog.Infof("[rt]no authorizer for %s", name)
			c.markUnsubscribed(name)
			return
		}
		authCtx, cancel := context.WithTimeout(ctx, c.settings.AuthTimeout)
		auth, err := c.authorizer.Authorize(authCtx, socketID, name)
		cancel()
		if err != nil {
			glog.Infof("[rt]auth %s error = %s", name, err)
			c.markUnsubscribed(name)
			return
		}
		data.Auth = auth
	}

	msg, err := NewMessage(EventSubscribe, "", data)
	if err != nil {
		return
	}
	enqueue(out, msg)
	glog.V(1).Infof("[rt]subscribe %s", name)
}

func (c *Client) markUnsubscribed(name string) {
	c.mu.Lock()
	if st := c.channels[name]; st != nil {
		st.subscribed = false
	}
	c.mu.Unlock()
}

func (c *Client) bind(channel string, event string, h Handler) (*Binding, error) {
	b := &Binding{
		id:      ulid.Make(),
		client:  c,
		channel: channel,
		event:   NormalizeEvent(event),
		handler: h,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	st := c.channels[channel]
	fresh := st == nil
	if fresh {
		st = &channelState{name: channel, bindings: map[ulid.ULID]*Binding{}}
		c.channels[channel] = st
	}
	st.bindings[b.id] = b
	connected := c.out != nil
	c.mu.Unlock()

	if fresh && connected {
		go c.subscribe(c.ctx, channel)
	}
	glog.V(1).Infof("[rt]bind %s/%s %s", channel, b.event, b.id)
	return b, nil
}

func (c *Client) unbind(b *Binding) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	st := c.channels[b.channel]
	if st == nil {
		return nil
	}
	if _, ok := st.bindings[b.id]; !ok {
		return nil
	}
	delete(st.bindings, b.id)
	glog.V(1).Infof("[rt]unbind %s/%s %s", b.channel, b.event, b.id)
	if len(st.bindings) > 0 {
		return nil
	}

	delete(c.channels, b.channel)
	if st.subscribed && c.out != nil {
		if msg, err := NewMessage(EventUnsubscribe, "", SubscribeData{Channel: b.channel}); err == nil {
			enqueue(c.out, msg)
		}
		glog.V(1).Infof("[rt]unsubscribe %s", b.channel)
	}
	return nil
}

func (c *Client) bindingCount(channel string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st := c.channels[channel]; st != nil {
		return len(st.bindings)
	}
	return 0
}

func enqueue(out chan []byte, msg []byte) {
	select {
	case out <- msg:
	default:
		glog.Infof("[rt]-> drop, send buffer full")
	}
}

// NormalizeEvent strips the leading dot of custom event names and any
// namespace prefix ("App\Events\TaskCreated").
func NormalizeEvent(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), ".")
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}
