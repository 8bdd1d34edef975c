// Package events defines the push events broadcast by the task server, one
// type per event name.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/realtime"
)

const (
	ChannelTasks      = "tasks"
	ChannelDailyNotes = "daily-notes"
	ChannelUsers      = "users"
)

const (
	NameTaskCreated          = "TaskCreated"
	NameTaskUpdated          = "TaskUpdated"
	NameTaskDeleted          = "TaskDeleted"
	NameDailyNoteCreated     = "DailyNoteCreated"
	NameDailyNoteUpdated     = "DailyNoteUpdated"
	NameDailyNoteDeleted     = "DailyNoteDeleted"
	NameUserCreated          = "UserCreated"
	NameProjectMemberRemoved = "ProjectMemberRemoved"
	NameProjectDeleted       = "ProjectDeleted"
)

var ErrUnknownEvent = errors.New("unknown event")

// ProjectChannel is the private channel carrying membership events for a project.
func ProjectChannel(projectID int64) string {
	return "projects." + strconv.FormatInt(projectID, 10)
}

// Event is implemented by every payload type below.
type Event interface {
	EventName() string
}

type TaskCreated struct {
	Task model.Task `json:"task"`
}

type TaskUpdated struct {
	Task model.Task `json:"task"`
}

type TaskDeleted struct {
	ID int64 `json:"id"`
}

type DailyNoteCreated struct {
	Note model.DailyNote `json:"note"`
}

type DailyNoteUpdated struct {
	Note model.DailyNote `json:"note"`
}

type DailyNoteDeleted struct {
	ID int64 `json:"id"`
}

type UserCreated struct{}

type ProjectMemberRemoved struct {
	UserID int64 `json:"userId"`
}

type ProjectDeleted struct{}

func (TaskCreated) EventName() string          { return NameTaskCreated }
func (TaskUpdated) EventName() string          { return NameTaskUpdated }
func (TaskDeleted) EventName() string          { return NameTaskDeleted }
func (DailyNoteCreated) EventName() string     { return NameDailyNoteCreated }
func (DailyNoteUpdated) EventName() string     { return NameDailyNoteUpdated }
func (DailyNoteDeleted) EventName() string     { return NameDailyNoteDeleted }
func (UserCreated) EventName() string          { return NameUserCreated }
func (ProjectMemberRemoved) EventName() string { return NameProjectMemberRemoved }
func (ProjectDeleted) EventName() string       { return NameProjectDeleted }

// Normalize maps a wire event name to the names above.
func Normalize(name string) string {
	return realtime.NormalizeEvent(name)
}

// Decode parses data as the payload of the named event.
func Decode(name string, data []byte) (Event, error) {
	var ev Event
	switch Normalize(name) {
	case NameTaskCreated:
		ev = &TaskCreated{}
	case NameTaskUpdated:
		ev = &TaskUpdated{}
	case NameTaskDeleted:
		ev = &TaskDeleted{}
	case NameDailyNoteCreated:
		ev = &DailyNoteCreated{}
	case NameDailyNoteUpdated:
		ev = &DailyNoteUpdated{}
	case NameDailyNoteDeleted:
		ev = &DailyNoteDeleted{}
	case NameUserCreated:
		return UserCreated{}, nil
	case NameProjectMemberRemoved:
		ev = &ProjectMemberRemoved{}
	case NameProjectDeleted:
		return ProjectDeleted{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.EventName(), err)
		}
	}
	return deref(ev), nil
}

// Encode renders ev as the JSON payload sent on the wire.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return data, nil
}

func deref(ev Event) Event {
	switch e := ev.(type) {
	case *TaskCreated:
		return *e
	case *TaskUpdated:
		return *e
	case *TaskDeleted:
		return *e
	case *DailyNoteCreated:
		return *e
	case *DailyNoteUpdated:
		return *e
	case *DailyNoteDeleted:
		return *e
	case *ProjectMemberRemoved:
		return *e
	}
	return ev
}
