package broker

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/Joseda-hg/teamboard/internal/realtime"
)

const (
	SendBufferSize  = 64
	ActivityTimeout = 120

	WriteTimeout = 5 * time.Second
	ReadTimeout  = 2 * ActivityTimeout * time.Second
)

// Error codes sent in pusher:error frames.
const (
	CodeUnknownApp = 4001
	CodeAuthFailed = 4009
	CodeBadFrame   = 4200
)

// Hub is a Pusher protocol broker. Connections subscribe to channels and
// receive every event published on them.
type Hub struct {
	key    string
	secret string

	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
}

type conn struct {
	hub      *Hub
	ws       *websocket.Conn
	socketID string
	send     chan []byte
	done     chan struct{}
	once     sync.Once

	mu       sync.Mutex
	channels map[string]struct{}
}

func New(key string, secret string) *Hub {
	return &Hub{
		key:    key,
		secret: secret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: map[*conn]struct{}{},
	}
}

func (h *Hub) Key() string { return h.key }

// Authorize signs a private channel subscription for socketID.
func (h *Hub) Authorize(socketID string, channel string) string {
	return realtime.Sign(h.key, h.secret, socketID, channel)
}

// ServeHTTP serves a connection for the hub's own key.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Serve(w, r, h.key)
}

// Serve upgrades the request for the given app key.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, key string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[broker]upgrade error = %s", err)
		return
	}

	if key != h.key {
		frame, _ := realtime.NewMessage(realtime.EventError, "", realtime.ErrorData{Message: "unknown app key", Code: CodeUnknownApp})
		ws.SetWriteDeadline(time.Now().Add(WriteTimeout))
		_ = ws.WriteMessage(websocket.TextMessage, frame)
		ws.Close()
		return
	}

	c := &conn{
		hub:      h,
		ws:       ws,
		socketID: ulid.Make().String(),
		send:     make(chan []byte, SendBufferSize),
		done:     make(chan struct{}),
		channels: map[string]struct{}{},
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	glog.V(1).Infof("[broker]open %s", c.socketID)
	c.serve()
}

// Publish sends event to every connection subscribed to channel and returns
// the number of receivers.
func (h *Hub) Publish(channel string, event string, payload []byte) int {
	frame, err := realtime.NewEventMessage(event, channel, payload)
	if err != nil {
		glog.Infof("[broker]encode %s/%s error = %s", channel, event, err)
		return 0
	}

	n := 0
	for _, c := range h.snapshot() {
		if !c.subscribed(channel) {
			continue
		}
		if c.enqueue(frame) {
			n++
		}
	}
	glog.V(2).Infof("[broker]publish %s %s receivers=%d", channel, event, n)
	return n
}

// Subscribers counts connections subscribed to channel.
func (h *Hub) Subscribers(channel string) int {
	n := 0
	for _, c := range h.snapshot() {
		if c.subscribed(channel) {
			n++
		}
	}
	return n
}

func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (h *Hub) snapshot() []*conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (c *conn) serve() {
	defer func() {
		c.close()
		c.hub.remove(c)
		glog.V(1).Infof("[broker]close %s", c.socketID)
	}()

	go c.write()

	est, err := json.Marshal(realtime.ConnectionEstablished{SocketID: c.socketID, ActivityTimeout: ActivityTimeout})
	if err != nil {
		return
	}
	frame, err := realtime.NewEventMessage(realtime.EventConnectionEstablished, "", est)
	if err != nil {
		return
	}
	c.enqueue(frame)

	for {
		c.ws.SetReadDeadline(time.Now().Add(ReadTimeout))
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					glog.Infof("[broker]<- %s error = %s", c.socketID, err)
				}
			}
			return
		}
		c.handle(data)
	}
}

func (c *conn) handle(data []byte) {
	var m realtime.Message
	if err := json.Unmarshal(data, &m); err != nil {
		c.fail("undecodable frame", CodeBadFrame)
		return
	}
	glog.V(2).Infof("[broker]<- %s %s", c.socketID, m.Event)

	switch m.Event {
	case realtime.EventPing:
		pong, _ := realtime.NewMessage(realtime.EventPong, "", map[string]any{})
		c.enqueue(pong)
	case realtime.EventPong:
	case realtime.EventSubscribe:
		var sub realtime.SubscribeData
		if err := m.Decode(&sub); err != nil || sub.Channel == "" {
			c.fail("bad subscribe payload", CodeBadFrame)
			return
		}
		c.subscribe(sub)
	case realtime.EventUnsubscribe:
		var sub realtime.SubscribeData
		if err := m.Decode(&sub); err != nil {
			c.fail("bad unsubscribe payload", CodeBadFrame)
			return
		}
		c.mu.Lock()
		delete(c.channels, sub.Channel)
		c.mu.Unlock()
		glog.V(1).Infof("[broker]%s unsubscribed %s", c.socketID, sub.Channel)
	default:
		glog.V(2).Infof("[broker]%s ignored %s", c.socketID, m.Event)
	}
}

func (c *conn) subscribe(sub realtime.SubscribeData) {
	if realtime.IsPrivate(sub.Channel) {
		if !realtime.VerifySignature(c.hub.key, c.hub.secret, c.socketID, sub.Channel, sub.Auth) {
			glog.Infof("[broker]%s auth failed for %s", c.socketID, sub.Channel)
			c.fail("invalid signature for "+sub.Channel, CodeAuthFailed)
			return
		}
	}

	c.mu.Lock()
	c.channels[sub.Channel] = struct{}{}
	c.mu.Unlock()

	frame, err := realtime.NewEventMessage(realtime.EventSubscriptionSucceeded, sub.Channel, []byte("{}"))
	if err != nil {
		return
	}
	c.enqueue(frame)
	glog.V(1).Infof("[broker]%s subscribed %s", c.socketID, sub.Channel)
}

func (c *conn) fail(message string, code int) {
	frame, err := realtime.NewMessage(realtime.EventError, "", realtime.ErrorData{Message: message, Code: code})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *conn) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[channel]
	return ok
}

// enqueue drops the connection when its buffer is full.
func (c *conn) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		glog.Infof("[broker]%s send buffer full, closing", c.socketID)
		c.close()
		return false
	}
}

func (c *conn) write() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				glog.Infof("[broker]-> %s error = %s", c.socketID, err)
				c.close()
				return
			}
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}
