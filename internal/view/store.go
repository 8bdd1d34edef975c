// Package view holds the per-screen collection that REST fetches, push events
// and optimistic patches all write into.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/Joseda-hg/teamboard/internal/reconcile"
)

// ErrStale is returned by Refresh when a newer fetch or Close superseded it.
var ErrStale = errors.New("stale fetch discarded")

type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// CommitFetchFunc is a FetchFunc that also returns commit, which runs under the
// store lock only when the snapshot is accepted. It may be nil.
type CommitFetchFunc[T any] func(ctx context.Context) (items []T, commit func(), err error)

// Store is owned by a single screen. All writes are serialized by mu and
// become no-ops once the store is closed.
type Store[T reconcile.Keyed] struct {
	name  string
	order reconcile.Ordering[T]
	fetch CommitFetchFunc[T]

	mu     sync.Mutex
	state  reconcile.State[T]
	match  reconcile.Predicate[T]
	gen    uint64
	closed bool
	loaded bool
	subs   map[chan struct{}]struct{}
}

func NewStore[T reconcile.Keyed](name string, order reconcile.Ordering[T], fetch FetchFunc[T]) *Store[T] {
	var commitFetch CommitFetchFunc[T]
	if fetch != nil {
		commitFetch = func(ctx context.Context) ([]T, func(), error) {
			items, err := fetch(ctx)
			return items, nil, err
		}
	}
	return NewCommitStore(name, order, commitFetch)
}

// NewCommitStore builds a store whose fetch carries side data, such as a
// second collection loaded by the same request, that must be discarded along
// with a stale snapshot.
func NewCommitStore[T reconcile.Keyed](name string, order reconcile.Ordering[T], fetch CommitFetchFunc[T]) *Store[T] {
	return &Store[T]{
		name:  name,
		order: order,
		fetch: fetch,
		subs:  map[chan struct{}]struct{}{},
	}
}

func (s *Store[T]) Name() string { return s.name }

// Subscribe returns a channel that receives a signal after every change.
// Signals coalesce when the consumer is slow.
func (s *Store[T]) Subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 1)
	s.mu.Lock()
	if s.closed {
		close(ch)
	} else {
		s.subs[ch] = struct{}{}
	}
	s.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Items returns a copy of the visible list in its declared order.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.state.Items...)
}

func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Get(id)
}

func (s *Store[T]) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// SetFilter swaps the membership predicate and drops rows that no longer
// match. Callers follow up with Refresh to pick up rows that now do.
func (s *Store[T]) SetFilter(match reconcile.Predicate[T]) {
	s.update(func(st reconcile.State[T]) reconcile.State[T] {
		s.match = match
		return reconcile.Refilter(st, match)
	})
}

// Refresh fetches a full snapshot and seeds the store with it. A response that
// arrives after a newer Refresh started, or after Close, is discarded.
func (s *Store[T]) Refresh(ctx context.Context) error {
	if s.fetch == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStale
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	items, commit, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		glog.V(2).Infof("[view] %s: discarded stale fetch gen=%d", s.name, gen)
		return ErrStale
	}
	s.state = reconcile.Seed(s.state, items, s.match, s.order)
	s.loaded = true
	if commit != nil {
		commit()
	}
	n := len(s.state.Items)
	s.notifyLocked()
	s.mu.Unlock()
	glog.V(2).Infof("[view] %s: seeded %d rows", s.name, n)
	return nil
}

// Seed replaces the contents directly, bypassing the fetch function.
func (s *Store[T]) Seed(items []T) {
	s.update(func(st reconcile.State[T]) reconcile.State[T] {
		s.loaded = true
		return reconcile.Seed(st, items, s.match, s.order)
	})
}

func (s *Store[T]) Created(item T) {
	s.update(func(st reconcile.State[T]) reconcile.State[T] {
		return reconcile.ApplyCreated(st, item, s.match, s.order)
	})
}

func (s *Store[T]) Updated(item T) {
	s.update(func(st reconcile.State[T]) reconcile.State[T] {
		return reconcile.ApplyUpdated(st, item, s.match, s.order)
	})
}

func (s *Store[T]) Deleted(id int64) {
	s.update(func(st reconcile.State[T]) reconcile.State[T] {
		return reconcile.ApplyDeleted(st, id)
	})
}

// Remove drops a row locally without marking it deleted.
func (s *Store[T]) Remove(id int64) {
	s.update(func(st reconcile.State[T]) reconcile.State[T] {
		return reconcile.Remove(st, id)
	})
}

// Patch applies fn to the row with id and returns the row before and after.
// The patched row goes through the same membership and ordering rules as an
// update event, so it leaves the view when it stops matching the filter.
func (s *Store[T]) Patch(id int64, fn func(T) T) (before, after T, ok bool) {
	s.update(func(st reconcile.State[T]) reconcile.State[T] {
		before, ok = st.Get(id)
		if !ok {
			return st
		}
		after = fn(before)
		return reconcile.ApplyUpdated(st, after, s.match, s.order)
	})
	return before, after, ok
}

// Close stops all writes and closes subscriber channels.
func (s *Store[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = map[chan struct{}]struct{}{}
	glog.V(1).Infof("[view] %s: closed", s.name)
}

func (s *Store[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store[T]) update(fn func(reconcile.State[T]) reconcile.State[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = fn(s.state)
	s.notifyLocked()
}

func (s *Store[T]) notifyLocked() {
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
