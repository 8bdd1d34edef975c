// Package optimistic applies local intents to a view store before the server
// confirms them, and rolls back by re-fetching when it does not.
package optimistic

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/reconcile"
	"github.com/Joseda-hg/teamboard/internal/view"
)

type NoticeKind int

const (
	MutationFailed NoticeKind = iota
	EligibleForCompletion
)

func (k NoticeKind) String() string {
	switch k {
	case EligibleForCompletion:
		return "eligible"
	default:
		return "failed"
	}
}

type Notice struct {
	Kind    NoticeKind
	ID      int64
	Message string
	Err     error
}

type Notifier func(Notice)

// Coordinator is bound to one view store. It is safe for concurrent use.
type Coordinator[T reconcile.Keyed] struct {
	store  *view.Store[T]
	notify Notifier
}

func New[T reconcile.Keyed](store *view.Store[T], notify Notifier) *Coordinator[T] {
	if notify == nil {
		notify = func(Notice) {}
	}
	return &Coordinator[T]{store: store, notify: notify}
}

// Mutate patches the row with id, then calls confirm. When confirm fails the
// collection is re-fetched and a MutationFailed notice is sent. A successful
// confirm needs no follow-up: the matching push event replaces the row.
func (c *Coordinator[T]) Mutate(ctx context.Context, id int64, label string, patch func(T) T, confirm func(context.Context) error) error {
	c.store.Patch(id, patch)
	return c.confirm(ctx, id, label, confirm)
}

// Delete removes the row locally, without a tombstone, and confirms.
func (c *Coordinator[T]) Delete(ctx context.Context, id int64, label string, confirm func(context.Context) error) error {
	c.store.Remove(id)
	return c.confirm(ctx, id, label, confirm)
}

func (c *Coordinator[T]) confirm(ctx context.Context, id int64, label string, confirm func(context.Context) error) error {
	err := confirm(ctx)
	if err == nil {
		glog.V(2).Infof("[opt] %s %s #%d confirmed", c.store.Name(), label, id)
		return nil
	}

	glog.Infof("[opt] %s %s #%d rejected: %v", c.store.Name(), label, id, err)
	if c.store.Closed() {
		return err
	}
	if rerr := c.store.Refresh(ctx); rerr != nil && !errors.Is(rerr, view.ErrStale) {
		glog.Infof("[opt] %s rollback refetch failed: %v", c.store.Name(), rerr)
	}
	c.notify(Notice{
		Kind:    MutationFailed,
		ID:      id,
		Message: fmt.Sprintf("could not %s", label),
		Err:     err,
	})
	return err
}

// TaskUpdater sends the full task to the server.
type TaskUpdater func(ctx context.Context, task model.Task) error

// ToggleSubtask flips one subtask. Once the server accepts a toggle that
// leaves every subtask completed, an EligibleForCompletion notice is sent.
func ToggleSubtask(ctx context.Context, c *Coordinator[model.Task], taskID int64, index int, update TaskUpdater) error {
	_, after, ok := c.store.Patch(taskID, func(t model.Task) model.Task {
		t = t.Clone()
		if index >= 0 && index < len(t.Subtasks) {
			t.Subtasks[index].Completed = !t.Subtasks[index].Completed
		}
		return t
	})
	if !ok {
		return fmt.Errorf("toggle subtask: task %d not in view", taskID)
	}
	if index < 0 || index >= len(after.Subtasks) {
		return fmt.Errorf("toggle subtask: task %d has no subtask %d", taskID, index)
	}

	if err := c.confirm(ctx, taskID, "update subtask", func(ctx context.Context) error {
		return update(ctx, after)
	}); err != nil {
		return err
	}

	if after.AllSubtasksDone() && !after.Completed() && !c.store.Closed() {
		c.notify(Notice{
			Kind:    EligibleForCompletion,
			ID:      taskID,
			Message: fmt.Sprintf("all subtasks of %q are done, the task can be completed", after.Title),
		})
	}
	return nil
}

// SetStatus moves a task to status, attaching note when completing.
func SetStatus(ctx context.Context, c *Coordinator[model.Task], taskID int64, status, note string, update TaskUpdater) error {
	status = model.NormalizeStatus(status)
	_, after, ok := c.store.Patch(taskID, func(t model.Task) model.Task {
		t = t.Clone()
		t.Status = status
		t.DisplayStatus = status
		if status == model.StatusCompleted && note != "" {
			t.CompletionNote = note
		}
		return t
	})
	if !ok {
		return fmt.Errorf("set status: task %d not in view", taskID)
	}
	return c.confirm(ctx, taskID, "mark task "+status, func(ctx context.Context) error {
		return update(ctx, after)
	})
}
