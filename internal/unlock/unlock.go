// Package unlock derives which task in an ordered queue is actionable.
//
// Nothing here is stored. States are recomputed from the list on every
// render, so concurrent store updates can never leave a stale pointer behind.
package unlock

import (
	"sort"

	"github.com/Joseda-hg/teamboard/internal/model"
)

type State int

const (
	Locked State = iota
	Current
	Completed
)

func (s State) String() string {
	switch s {
	case Current:
		return "current"
	case Completed:
		return "completed"
	default:
		return "locked"
	}
}

type Entry struct {
	Task  model.Task
	State State
}

// Derive walks tasks in the given order. The first task that is not completed
// is current, unless the administrative lock flag is set on it. Every other
// open task is locked.
func Derive(tasks []model.Task) []Entry {
	out := make([]Entry, len(tasks))
	found := false
	for i, task := range tasks {
		out[i].Task = task
		switch {
		case task.Completed():
			out[i].State = Completed
		case !found:
			found = true
			if task.Locked {
				out[i].State = Locked
			} else {
				out[i].State = Current
			}
		default:
			out[i].State = Locked
		}
	}
	return out
}

// DeriveByID sorts a copy of tasks by ascending id before deriving.
func DeriveByID(tasks []model.Task) []Entry {
	sorted := append([]model.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return Derive(sorted)
}

// CurrentTask returns the actionable task, if any.
func CurrentTask(entries []Entry) (model.Task, bool) {
	for _, e := range entries {
		if e.State == Current {
			return e.Task, true
		}
	}
	return model.Task{}, false
}

// AllClear reports a non-empty queue with every task completed.
func AllClear(entries []Entry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.State != Completed {
			return false
		}
	}
	return true
}

// StateOf returns the derived state of the task with id, defaulting to Locked.
func StateOf(entries []Entry, id int64) State {
	for _, e := range entries {
		if e.Task.ID == id {
			return e.State
		}
	}
	return Locked
}
