// Package screen wires view stores to the REST API and to push events. Each
// screen owns its stores and its subscription scope; closing a screen
// releases its listeners and discards responses still in flight.
package screen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Joseda-hg/teamboard/internal/api"
	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/optimistic"
	"github.com/Joseda-hg/teamboard/internal/realtime"
	"github.com/Joseda-hg/teamboard/internal/view"
)

const DefaultPollInterval = 60 * time.Second

// API is the part of the REST client the screens use.
type API interface {
	ListTasks(ctx context.Context, q api.TaskQuery) ([]model.Task, error)
	UpdateTask(ctx context.Context, id int64, in api.TaskUpdate) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ReassignTask(ctx context.Context, id int64, in api.ReassignInput) (model.Task, error)
	ListNotes(ctx context.Context, q api.NoteQuery) ([]model.DailyNote, error)
	UpdateNote(ctx context.Context, id int64, in api.NoteInput) (model.DailyNote, error)
	DeleteNote(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]model.User, error)
	ListReassignments(ctx context.Context, userID int64) ([]model.Reassignment, error)
	GetProject(ctx context.Context, id int64, date string) (model.Project, error)
}

// Env carries what every screen needs. Connector may be nil, which is the
// same as realtime being disabled.
type Env struct {
	API          API
	Connector    *realtime.Connector
	Session      api.Session
	PollInterval time.Duration
	Notify       optimistic.Notifier
}

func (e Env) pollInterval() time.Duration {
	if e.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return e.PollInterval
}

// Screen is the common surface the TUI and the watch command drive.
type Screen interface {
	Name() string
	Refresh(ctx context.Context) error
	Changes() (<-chan struct{}, func())
	Snapshot() any
	Realtime() bool
	Close()
}

// base holds the lifecycle shared by all screens.
type base struct {
	name  string
	env   Env
	scope *realtime.Scope

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closers []func()
	closed  bool
}

func newBase(name string, env Env) *base {
	ctx, cancel := context.WithCancel(context.Background())
	b := &base{
		name:   name,
		env:    env,
		scope:  realtime.NewScope(name, env.Connector),
		ctx:    ctx,
		cancel: cancel,
	}
	glog.V(1).Infof("[screen]%s mounted realtime=%t", name, b.scope.Available())
	return b
}

func (b *base) Name() string { return b.name }

func (b *base) Realtime() bool { return b.scope.Available() }

// onClose registers fn to run when the screen closes, before the scope is
// released.
func (b *base) onClose(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closers = append(b.closers, fn)
}

// Close releases listeners, closes the stores and waits for background work.
func (b *base) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	closers := b.closers
	b.closers = nil
	b.mu.Unlock()

	b.scope.Close()
	for _, fn := range closers {
		fn()
	}
	b.cancel()
	b.wg.Wait()
	glog.V(1).Infof("[screen]%s unmounted", b.name)
}

func (b *base) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// listen binds a typed handler for event on channel. Payloads that do not
// decode are logged and dropped.
func (b *base) listen(channel string, event string, fn func(events.Event), deps ...any) *realtime.Listener {
	return b.scope.Listen(channel, event, b.decoder(event, fn), deps...)
}

func (b *base) listenPrivate(channel string, event string, fn func(events.Event), deps ...any) *realtime.Listener {
	return b.scope.ListenPrivate(channel, event, b.decoder(event, fn), deps...)
}

func (b *base) decoder(event string, fn func(events.Event)) realtime.Handler {
	return func(data []byte) {
		ev, err := events.Decode(event, data)
		if err != nil {
			glog.Infof("[screen]%s dropped %s: %s", b.name, event, err)
			return
		}
		glog.V(2).Infof("[screen]%s <- %s", b.name, event)
		fn(ev)
	}
}

// goRefresh re-fetches off the transport's reader goroutine.
func (b *base) goRefresh(refresh func(ctx context.Context) error) {
	if b.isClosed() {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		logRefresh(b.name, refresh(b.ctx))
	}()
}

// poll re-fetches on an interval when realtime is unavailable.
func (b *base) poll(refresh func(ctx context.Context) error) {
	if b.scope.Available() {
		return
	}
	interval := b.env.pollInterval()
	glog.V(1).Infof("[screen]%s polling every %s", b.name, interval)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.ctx.Done():
				return
			case <-ticker.C:
				logRefresh(b.name, refresh(b.ctx))
			}
		}
	}()
}

func (b *base) notify(n optimistic.Notice) {
	if b.env.Notify != nil {
		b.env.Notify(n)
	}
}

func logRefresh(name string, err error) {
	if err == nil || errors.Is(err, view.ErrStale) || errors.Is(err, context.Canceled) {
		return
	}
	glog.Infof("[screen]%s refresh error = %s", name, err)
}

// mergeChanges fans the change signals of several stores into one channel.
func mergeChanges(subs ...func() (chan struct{}, func())) (<-chan struct{}, func()) {
	out := make(chan struct{}, 1)
	done := make(chan struct{})
	var once sync.Once
	var wg sync.WaitGroup
	cancels := make([]func(), 0, len(subs))

	for _, sub := range subs {
		ch, cancel := sub()
		cancels = append(cancels, cancel)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- struct{}{}:
					default:
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, func() {
		once.Do(func() {
			close(done)
			for _, cancel := range cancels {
				cancel()
			}
		})
	}
}
