package screen

import (
	"context"
	"errors"
	"fmt"

	"github.com/Joseda-hg/teamboard/internal/api"
	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/optimistic"
	"github.com/Joseda-hg/teamboard/internal/reconcile"
	"github.com/Joseda-hg/teamboard/internal/unlock"
	"github.com/Joseda-hg/teamboard/internal/view"
)

var ErrLocked = errors.New("task is locked")

// Queue is one member's work queue for a day, ordered by id, with overdue
// tasks carried over. Only the current task accepts progress updates.
type Queue struct {
	*base
	date  string
	tasks *view.Store[model.Task]
	coord *optimistic.Coordinator[model.Task]
}

type Counters struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Late      int `json:"late"`
}

type QueueEntry struct {
	Task  model.Task `json:"task"`
	State string     `json:"state"`
}

type QueueSnapshot struct {
	Date     string       `json:"date"`
	Entries  []QueueEntry `json:"entries"`
	AllClear bool         `json:"all_clear"`
	Counters Counters     `json:"counters"`
}

func NewQueue(env Env, date string) *Queue {
	q := &Queue{base: newBase("queue", env), date: date}
	filter := q.filter()
	q.tasks = view.NewStore("queue", reconcile.ByID[model.Task](), q.fetch)
	q.tasks.SetFilter(filter.Match)
	q.coord = optimistic.New(q.tasks, q.notify)

	q.listen(events.ChannelTasks, events.NameTaskCreated, q.onTask, filter)
	q.listen(events.ChannelTasks, events.NameTaskUpdated, q.onTask, filter)
	q.listen(events.ChannelTasks, events.NameTaskDeleted, q.onTask, filter)
	q.onClose(q.tasks.Close)
	q.poll(q.tasks.Refresh)
	return q
}

func (q *Queue) filter() model.TaskFilter {
	return model.TaskFilter{Date: q.date, UserID: q.env.Session.UserID, ShowPrevious: true}
}

func (q *Queue) fetch(ctx context.Context) ([]model.Task, error) {
	return q.env.API.ListTasks(ctx, api.TaskQuery{
		Date:           q.date,
		UserID:         q.env.Session.UserID,
		IncludeOverdue: true,
	})
}

func (q *Queue) onTask(ev events.Event) {
	switch e := ev.(type) {
	case events.TaskCreated:
		q.tasks.Created(e.Task)
	case events.TaskUpdated:
		q.tasks.Updated(e.Task)
	case events.TaskDeleted:
		q.tasks.Deleted(e.ID)
		q.goRefresh(q.tasks.Refresh)
	}
}

func (q *Queue) Date() string { return q.date }

func (q *Queue) Refresh(ctx context.Context) error { return q.tasks.Refresh(ctx) }

func (q *Queue) Store() *view.Store[model.Task] { return q.tasks }

// Entries derives unlock states from the current contents.
func (q *Queue) Entries() []unlock.Entry {
	return unlock.Derive(q.tasks.Items())
}

func (q *Queue) Current() (model.Task, bool) {
	return unlock.CurrentTask(q.Entries())
}

func (q *Queue) AllClear() bool {
	return unlock.AllClear(q.Entries())
}

// Counters tallies the queue by display status. Rejected tasks count as late.
func (q *Queue) Counters() Counters {
	var c Counters
	for _, t := range q.tasks.Items() {
		status := t.DisplayStatus
		if status == "" {
			status = t.Status
		}
		switch status {
		case model.StatusCompleted:
			c.Completed++
		case model.StatusLate, model.StatusRejected:
			c.Late++
		default:
			c.Pending++
		}
	}
	return c
}

func (q *Queue) Changes() (<-chan struct{}, func()) {
	return mergeChanges(q.tasks.Subscribe)
}

func (q *Queue) Snapshot() any {
	entries := q.Entries()
	out := QueueSnapshot{
		Date:     q.date,
		Entries:  make([]QueueEntry, 0, len(entries)),
		AllClear: unlock.AllClear(entries),
		Counters: q.Counters(),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, QueueEntry{Task: e.Task, State: e.State.String()})
	}
	return out
}

// ToggleSubtask flips a subtask of the current task.
func (q *Queue) ToggleSubtask(ctx context.Context, taskID int64, index int) error {
	if err := q.actionable(taskID); err != nil {
		return err
	}
	return optimistic.ToggleSubtask(ctx, q.coord, taskID, index, updater(q.env.API))
}

// Complete marks the current task completed with an optional note.
func (q *Queue) Complete(ctx context.Context, taskID int64, note string) error {
	if err := q.actionable(taskID); err != nil {
		return err
	}
	return optimistic.SetStatus(ctx, q.coord, taskID, model.StatusCompleted, note, updater(q.env.API))
}

func (q *Queue) actionable(taskID int64) error {
	entries := q.Entries()
	for _, e := range entries {
		if e.Task.ID != taskID {
			continue
		}
		if e.State != unlock.Current {
			return fmt.Errorf("task %d is %s: %w", taskID, e.State, ErrLocked)
		}
		return nil
	}
	return fmt.Errorf("task %d not in queue", taskID)
}
