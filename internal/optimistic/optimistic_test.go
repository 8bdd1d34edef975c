package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/reconcile"
	"github.com/Joseda-hg/teamboard/internal/view"
)

type fakeServer struct {
	tasks   map[int64]model.Task
	fail    bool
	fetches int
}

func (s *fakeServer) fetch(context.Context) ([]model.Task, error) {
	s.fetches++
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *fakeServer) update(_ context.Context, task model.Task) error {
	if s.fail {
		return errors.New("500 server error")
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func newFixture(t *testing.T, tasks ...model.Task) (*fakeServer, *view.Store[model.Task], *[]Notice, *Coordinator[model.Task]) {
	t.Helper()
	srv := &fakeServer{tasks: map[int64]model.Task{}}
	for _, task := range tasks {
		srv.tasks[task.ID] = task
	}
	store := view.NewStore("queue", reconcile.ByID[model.Task](), srv.fetch)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	notices := &[]Notice{}
	coord := New(store, func(n Notice) { *notices = append(*notices, n) })
	return srv, store, notices, coord
}

func TestToggleSubtaskRollsBackOnFailure(t *testing.T) {
	srv, store, notices, coord := newFixture(t, model.Task{
		ID:       1,
		Title:    "Deploy",
		Status:   model.StatusPending,
		Subtasks: []model.Subtask{{Title: "build"}, {Title: "ship"}},
	})
	srv.fail = true

	err := ToggleSubtask(context.Background(), coord, 1, 0, srv.update)
	if err == nil {
		t.Fatalf("expected toggle to fail")
	}

	got, _ := store.Get(1)
	assert.Equal(t, got.Subtasks[0].Completed, false)
	assert.Equal(t, srv.fetches, 2)
	if len(*notices) != 1 || (*notices)[0].Kind != MutationFailed {
		t.Fatalf("expected one failure notice, got %+v", *notices)
	}
}

func TestToggleSubtaskAppliesImmediately(t *testing.T) {
	srv, store, notices, coord := newFixture(t, model.Task{
		ID:       1,
		Status:   model.StatusPending,
		Subtasks: []model.Subtask{{Title: "build"}, {Title: "ship"}},
	})

	if err := ToggleSubtask(context.Background(), coord, 1, 1, func(ctx context.Context, task model.Task) error {
		local, _ := store.Get(1)
		if !local.Subtasks[1].Completed {
			t.Fatalf("expected local patch before confirm")
		}
		return srv.update(ctx, task)
	}); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	assert.Equal(t, srv.tasks[1].Subtasks[1].Completed, true)
	assert.Equal(t, srv.fetches, 1)
	assert.Equal(t, len(*notices), 0)
}

func TestLastSubtaskRaisesEligibleNotice(t *testing.T) {
	srv, _, notices, coord := newFixture(t, model.Task{
		ID:       7,
		Title:    "Audit",
		Status:   model.StatusPending,
		Subtasks: []model.Subtask{{Title: "a", Completed: true}, {Title: "b"}},
	})

	if err := ToggleSubtask(context.Background(), coord, 7, 1, srv.update); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(*notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(*notices))
	}
	assert.Equal(t, (*notices)[0].Kind, EligibleForCompletion)
	assert.Equal(t, (*notices)[0].ID, int64(7))
}

func TestToggleUnknownSubtask(t *testing.T) {
	srv, _, _, coord := newFixture(t, model.Task{ID: 1})
	if err := ToggleSubtask(context.Background(), coord, 1, 3, srv.update); err == nil {
		t.Fatalf("expected error for missing subtask")
	}
	if err := ToggleSubtask(context.Background(), coord, 2, 0, srv.update); err == nil {
		t.Fatalf("expected error for missing task")
	}
}

func TestSetStatusWithNote(t *testing.T) {
	srv, store, _, coord := newFixture(t, model.Task{ID: 1, Status: model.StatusPending})
	if err := SetStatus(context.Background(), coord, 1, "Completed", "done early", srv.update); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := store.Get(1)
	assert.Equal(t, got.Status, model.StatusCompleted)
	assert.Equal(t, srv.tasks[1].CompletionNote, "done early")
}

func TestDeleteRestoresOnFailure(t *testing.T) {
	_, store, notices, coord := newFixture(t, model.Task{ID: 1}, model.Task{ID: 2})
	err := coord.Delete(context.Background(), 2, "delete task", func(context.Context) error {
		if _, ok := store.Get(2); ok {
			t.Fatalf("expected local removal before confirm")
		}
		return errors.New("403 forbidden")
	})
	if err == nil {
		t.Fatalf("expected delete to fail")
	}
	if _, ok := store.Get(2); !ok {
		t.Fatalf("expected task 2 restored by refetch")
	}
	assert.Equal(t, (*notices)[0].Kind, MutationFailed)
}

func TestFailureAfterCloseIsSilent(t *testing.T) {
	srv, store, notices, coord := newFixture(t, model.Task{ID: 1, Subtasks: []model.Subtask{{Title: "a"}}})
	err := coord.Mutate(context.Background(), 1, "rename", func(t model.Task) model.Task {
		t.Title = "x"
		return t
	}, func(context.Context) error {
		store.Close()
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	assert.Equal(t, len(*notices), 0)
	assert.Equal(t, srv.fetches, 1)
}
