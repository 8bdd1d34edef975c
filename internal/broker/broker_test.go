package broker

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/Joseda-hg/teamboard/internal/realtime"
)

func newTestHub(t *testing.T) (*Hub, realtime.Settings) {
	t.Helper()
	hub := New("app-key", "app-secret")
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	s := realtime.DefaultSettings()
	s.Key = "app-key"
	s.Host = u.Hostname()
	s.Port = port
	s.ReconnectTimeout = 50 * time.Millisecond
	return hub, s
}

func connect(t *testing.T, s realtime.Settings, auth realtime.Authorizer) *realtime.Client {
	t.Helper()
	client, err := realtime.NewClient(s, auth)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(client.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.WaitConnected(ctx); err != nil {
		t.Fatalf("wait connected: %v", err)
	}
	return client
}

func waitSubscribers(t *testing.T, hub *Hub, channel string, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers(channel) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers on %s, got %d", want, channel, hub.Subscribers(channel))
}

func waitPayload(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return ""
}

func TestPublishReachesSubscribers(t *testing.T) {
	hub, s := newTestHub(t)
	client := connect(t, s, nil)

	if client.SocketID() == "" {
		t.Fatalf("expected socket id")
	}

	got := make(chan string, 4)
	b, err := client.Channel("tasks").On("TaskCreated", func(data []byte) { got <- string(data) })
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	waitSubscribers(t, hub, "tasks", 1)

	assert.Equal(t, hub.Publish("tasks", "TaskCreated", []byte(`{"task":{"id":1}}`)), 1)
	assert.Equal(t, waitPayload(t, got), `{"task":{"id":1}}`)

	assert.Equal(t, hub.Publish("daily-notes", "DailyNoteCreated", []byte(`{}`)), 0)

	if err := b.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	waitSubscribers(t, hub, "tasks", 0)
	assert.Equal(t, hub.Publish("tasks", "TaskCreated", []byte(`{}`)), 0)
}

func TestPrivateChannelRequiresSignature(t *testing.T) {
	hub, s := newTestHub(t)

	good := connect(t, s, realtime.AuthorizerFunc(func(ctx context.Context, socketID string, channel string) (string, error) {
		return hub.Authorize(socketID, channel), nil
	}))
	bad := connect(t, s, realtime.AuthorizerFunc(func(ctx context.Context, socketID string, channel string) (string, error) {
		return "app-key:deadbeef", nil
	}))

	got := make(chan string, 4)
	if _, err := good.PrivateChannel("projects.7").On("ProjectDeleted", func(data []byte) { got <- "good" }); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := bad.PrivateChannel("projects.7").On("ProjectDeleted", func(data []byte) { got <- "bad" }); err != nil {
		t.Fatalf("bind: %v", err)
	}
	waitSubscribers(t, hub, "private-projects.7", 1)

	hub.Publish("private-projects.7", "ProjectDeleted", []byte(`{}`))
	assert.Equal(t, waitPayload(t, got), "good")
	select {
	case extra := <-got:
		t.Fatalf("expected one delivery, got extra %q", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub, s := newTestHub(t)
	client := connect(t, s, nil)
	assert.Equal(t, hub.Connections(), 1)

	hub.Close()
	deadline := time.Now().Add(5 * time.Second)
	for client.Connected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if client.Connected() {
		t.Fatalf("expected client to observe disconnect")
	}
}
