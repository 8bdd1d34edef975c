package screen

import (
	"context"
	"sync"

	"github.com/Joseda-hg/teamboard/internal/api"
	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/optimistic"
	"github.com/Joseda-hg/teamboard/internal/realtime"
	"github.com/Joseda-hg/teamboard/internal/reconcile"
	"github.com/Joseda-hg/teamboard/internal/view"
)

// Board is the admin task list under a date/user/status filter, ordered by
// start time.
type Board struct {
	*base
	tasks *view.Store[model.Task]
	coord *optimistic.Coordinator[model.Task]

	mu        sync.Mutex
	filter    model.TaskFilter
	listeners []*realtime.Listener
}

type BoardSnapshot struct {
	Filter model.TaskFilter `json:"filter"`
	Tasks  []model.Task     `json:"tasks"`
}

// NewBoard mounts the board. Listeners are bound before the first Refresh so
// no event between fetch and bind is lost.
func NewBoard(env Env, filter model.TaskFilter) *Board {
	b := &Board{base: newBase("board", env), filter: filter}
	b.tasks = view.NewStore("board", reconcile.ByTime(func(t model.Task) string { return t.StartTime }, false), b.fetch)
	b.tasks.SetFilter(filter.Match)
	b.coord = optimistic.New(b.tasks, b.notify)

	b.listeners = []*realtime.Listener{
		b.listen(events.ChannelTasks, events.NameTaskCreated, b.onTask, filter),
		b.listen(events.ChannelTasks, events.NameTaskUpdated, b.onTask, filter),
		b.listen(events.ChannelTasks, events.NameTaskDeleted, b.onTask, filter),
	}
	b.onClose(b.tasks.Close)
	b.poll(b.tasks.Refresh)
	return b
}

func (b *Board) fetch(ctx context.Context) ([]model.Task, error) {
	f := b.Filter()
	return b.env.API.ListTasks(ctx, api.TaskQuery{
		Date:           f.Date,
		UserID:         f.UserID,
		IncludeOverdue: f.ShowPrevious,
		IncludeUsers:   true,
	})
}

func (b *Board) onTask(ev events.Event) {
	switch e := ev.(type) {
	case events.TaskCreated:
		b.tasks.Created(e.Task)
	case events.TaskUpdated:
		b.tasks.Updated(e.Task)
	case events.TaskDeleted:
		b.tasks.Deleted(e.ID)
		// roll-ups are server computed; the delete alone cannot patch them
		b.goRefresh(b.tasks.Refresh)
	}
}

func (b *Board) Filter() model.TaskFilter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

// SetFilter re-evaluates membership under f, rebinds the listeners that
// depend on it and re-fetches.
func (b *Board) SetFilter(ctx context.Context, f model.TaskFilter) error {
	b.mu.Lock()
	b.filter = f
	listeners := b.listeners
	b.mu.Unlock()

	b.tasks.SetFilter(f.Match)
	for _, l := range listeners {
		l.Update(b.decoder(l.Event(), b.onTask), f)
	}
	return b.tasks.Refresh(ctx)
}

func (b *Board) Refresh(ctx context.Context) error { return b.tasks.Refresh(ctx) }

func (b *Board) Tasks() []model.Task { return b.tasks.Items() }

func (b *Board) Store() *view.Store[model.Task] { return b.tasks }

func (b *Board) Changes() (<-chan struct{}, func()) {
	return mergeChanges(b.tasks.Subscribe)
}

func (b *Board) Snapshot() any {
	return BoardSnapshot{Filter: b.Filter(), Tasks: b.tasks.Items()}
}

// Delete removes the task locally and asks the server to delete it. On
// failure the list is re-fetched.
func (b *Board) Delete(ctx context.Context, id int64) error {
	return b.coord.Delete(ctx, id, "delete task", func(ctx context.Context) error {
		return b.env.API.DeleteTask(ctx, id)
	})
}

func (b *Board) SetStatus(ctx context.Context, id int64, status string, note string) error {
	return optimistic.SetStatus(ctx, b.coord, id, status, note, updater(b.env.API))
}

// Reassign hands the task to another member. The row shows the new owner
// until the server confirms or the list is re-fetched.
func (b *Board) Reassign(ctx context.Context, id int64, in api.ReassignInput) error {
	return b.coord.Mutate(ctx, id, "reassign task", func(t model.Task) model.Task {
		t = t.Clone()
		t.UserID = in.ToUserID
		t.User = nil
		t.Status = model.StatusReassigned
		t.DisplayStatus = model.StatusReassigned
		if in.StartTime != "" {
			t.StartTime = in.StartTime
		}
		if in.EndTime != "" {
			t.EndTime = in.EndTime
		}
		return t
	}, func(ctx context.Context) error {
		_, err := b.env.API.ReassignTask(ctx, id, in)
		return err
	})
}

func updater(client API) optimistic.TaskUpdater {
	return func(ctx context.Context, t model.Task) error {
		_, err := client.UpdateTask(ctx, t.ID, api.UpdateFromTask(t))
		return err
	}
}
