package unlock

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/Joseda-hg/teamboard/internal/model"
)

func states(entries []Entry) []State {
	out := make([]State, len(entries))
	for i, e := range entries {
		out[i] = e.State
	}
	return out
}

func TestFirstOpenTaskIsCurrent(t *testing.T) {
	entries := Derive([]model.Task{
		{ID: 1, Status: model.StatusCompleted},
		{ID: 2, Status: model.StatusPending},
		{ID: 3, Status: model.StatusPending},
	})
	assert.Equal(t, states(entries), []State{Completed, Current, Locked})

	cur, ok := CurrentTask(entries)
	if !ok || cur.ID != 2 {
		t.Fatalf("expected task 2 to be current, got %d (%v)", cur.ID, ok)
	}
	assert.Equal(t, StateOf(entries, 3), Locked)
}

func TestAllCompletedHasNoCurrent(t *testing.T) {
	entries := Derive([]model.Task{
		{ID: 1, Status: model.StatusCompleted},
		{ID: 2, Status: model.StatusCompleted},
	})
	if _, ok := CurrentTask(entries); ok {
		t.Fatalf("expected no current task")
	}
	if !AllClear(entries) {
		t.Fatalf("expected all clear")
	}
	if AllClear(nil) {
		t.Fatalf("expected empty queue to not be all clear")
	}
}

func TestAdminLockOverridesCurrent(t *testing.T) {
	entries := Derive([]model.Task{
		{ID: 1, Status: model.StatusPending, Locked: true},
		{ID: 2, Status: model.StatusPending},
	})
	assert.Equal(t, states(entries), []State{Locked, Locked})
	if AllClear(entries) {
		t.Fatalf("expected locked queue to not be all clear")
	}
}

func TestCompletedAfterOpenStaysCompleted(t *testing.T) {
	entries := Derive([]model.Task{
		{ID: 1, Status: model.StatusLate},
		{ID: 2, Status: model.StatusCompleted},
		{ID: 3, Status: model.StatusRejected},
	})
	assert.Equal(t, states(entries), []State{Current, Completed, Locked})
}

func TestAtMostOneCurrent(t *testing.T) {
	statuses := []string{model.StatusPending, model.StatusCompleted, model.StatusLate, model.StatusRejected}
	// every combination of four tasks over four statuses and both lock values
	for mask := 0; mask < 4*4*4*4; mask++ {
		for lockMask := 0; lockMask < 16; lockMask++ {
			tasks := make([]model.Task, 4)
			m := mask
			for i := range tasks {
				tasks[i] = model.Task{ID: int64(i + 1), Status: statuses[m%4], Locked: lockMask&(1<<i) != 0}
				m /= 4
			}
			entries := Derive(tasks)
			current := 0
			allDone := true
			for _, e := range entries {
				if e.State == Current {
					current++
				}
				if !e.Task.Completed() {
					allDone = false
				}
			}
			if current > 1 {
				t.Fatalf("expected at most one current task, got %d for %+v", current, tasks)
			}
			if allDone && current != 0 {
				t.Fatalf("expected no current task when all are completed")
			}
		}
	}
}

func TestDeriveByIDSortsCopy(t *testing.T) {
	tasks := []model.Task{{ID: 3, Status: model.StatusPending}, {ID: 1, Status: model.StatusPending}}
	entries := DeriveByID(tasks)
	assert.Equal(t, entries[0].Task.ID, int64(1))
	assert.Equal(t, entries[0].State, Current)
	assert.Equal(t, tasks[0].ID, int64(3))
}
