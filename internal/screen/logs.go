package screen

import (
	"context"

	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/reconcile"
	"github.com/Joseda-hg/teamboard/internal/view"
)

// Reassignments is the handover log, newest first. Admins see the whole log,
// members their own entries. Every task update may have appended to it, so
// the log is re-fetched instead of patched.
type Reassignments struct {
	*base
	log *view.Store[model.Reassignment]
}

func NewReassignments(env Env) *Reassignments {
	r := &Reassignments{base: newBase("reassignments", env)}
	r.log = view.NewStore("reassignments", reconcile.ByTime(func(e model.Reassignment) string { return e.CreatedAt }, true), r.fetch)

	r.listen(events.ChannelTasks, events.NameTaskUpdated, func(events.Event) {
		r.goRefresh(r.log.Refresh)
	})
	r.onClose(r.log.Close)
	r.poll(r.log.Refresh)
	return r
}

func (r *Reassignments) fetch(ctx context.Context) ([]model.Reassignment, error) {
	var userID int64
	if !r.env.Session.IsAdmin() {
		userID = r.env.Session.UserID
	}
	return r.env.API.ListReassignments(ctx, userID)
}

func (r *Reassignments) Refresh(ctx context.Context) error { return r.log.Refresh(ctx) }

func (r *Reassignments) Items() []model.Reassignment { return r.log.Items() }

func (r *Reassignments) Changes() (<-chan struct{}, func()) {
	return mergeChanges(r.log.Subscribe)
}

func (r *Reassignments) Snapshot() any { return r.log.Items() }

// Members is the user directory, re-fetched whenever a user is created.
type Members struct {
	*base
	users *view.Store[model.User]
}

func NewMembers(env Env) *Members {
	m := &Members{base: newBase("members", env)}
	m.users = view.NewStore("members", reconcile.ByID[model.User](), m.env.API.ListUsers)

	m.listen(events.ChannelUsers, events.NameUserCreated, func(events.Event) {
		m.goRefresh(m.users.Refresh)
	})
	m.onClose(m.users.Close)
	m.poll(m.users.Refresh)
	return m
}

func (m *Members) Refresh(ctx context.Context) error { return m.users.Refresh(ctx) }

func (m *Members) Items() []model.User { return m.users.Items() }

func (m *Members) Changes() (<-chan struct{}, func()) {
	return mergeChanges(m.users.Subscribe)
}

func (m *Members) Snapshot() any { return m.users.Items() }
