package events

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/Joseda-hg/teamboard/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"TaskCreated":                  "TaskCreated",
		".TaskCreated":                 "TaskCreated",
		`App\Events\TaskUpdated`:       "TaskUpdated",
		`.App\Events\DailyNoteCreated`: "DailyNoteCreated",
		" UserCreated ":                "UserCreated",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestDecodeTaskEvents(t *testing.T) {
	ev, err := Decode(".TaskUpdated", []byte(`{"task":{"id":4,"title":"Ship","status":"late","subtasks":[{"title":"a","completed":true}]}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	updated, ok := ev.(TaskUpdated)
	if !ok {
		t.Fatalf("expected TaskUpdated, got %T", ev)
	}
	assert.Equal(t, updated.Task.ID, int64(4))
	assert.Equal(t, updated.Task.Status, model.StatusLate)
	assert.Equal(t, updated.Task.Subtasks[0].Completed, true)

	ev, err = Decode("TaskDeleted", []byte(`{"id":9}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, ev, Event(TaskDeleted{ID: 9}))
}

func TestDecodeEmptyPayloads(t *testing.T) {
	ev, err := Decode("UserCreated", []byte(`{"user":{"id":1}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, ev.EventName(), NameUserCreated)

	ev, err = Decode("ProjectMemberRemoved", []byte(`{"userId":12}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, ev, Event(ProjectMemberRemoved{UserID: 12}))
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode("SomethingElse", nil); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := Decode("TaskCreated", []byte(`{"task":`)); err == nil {
		t.Fatalf("expected malformed payload to fail")
	}
}

func TestEncodeRoundTripsNote(t *testing.T) {
	data, err := Encode(DailyNoteCreated{Note: model.DailyNote{ID: 3, Title: "Standup", Recipients: []model.Recipient{{ID: 7, Name: "Ana"}}}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := Decode(NameDailyNoteCreated, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	created := ev.(DailyNoteCreated)
	assert.Equal(t, created.Note.Recipients[0].ID, int64(7))
}

func TestProjectChannel(t *testing.T) {
	assert.Equal(t, ProjectChannel(5), "projects.5")
}
