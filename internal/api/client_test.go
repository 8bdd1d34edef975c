package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/Joseda-hg/teamboard/internal/model"
)

func TestListTasksSendsQueryAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("date") != "2024-01-01" || q.Get("user_id") != "7" || q.Get("include_overdue") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":2,"title":"b","status":"pending"},{"id":1,"title":"a","status":"completed"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", "tok")
	tasks, err := c.ListTasks(context.Background(), TaskQuery{Date: "2024-01-01", UserID: 7, IncludeOverdue: true})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	assert.Equal(t, tasks[1].Status, model.StatusCompleted)
}

func TestListAcceptsDataWrapper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":5,"title":"n","recipients":[]}]}`))
	}))
	defer srv.Close()

	notes, err := NewClient(srv.URL, "").ListNotes(context.Background(), NoteQuery{})
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	assert.Equal(t, len(notes), 1)
	assert.Equal(t, notes[0].ID, int64(5))
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"task is locked"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").UpdateTask(context.Background(), 3, TaskUpdate{Status: "completed"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	assert.Equal(t, se.Code, http.StatusUnprocessableEntity)
	assert.Equal(t, se.Message, "task is locked")
}

func TestUpdateFromTaskSendsFullState(t *testing.T) {
	var mu sync.Mutex
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/tasks/4" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		mu.Lock()
		json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		w.Write([]byte(`{"id":4}`))
	}))
	defer srv.Close()

	task := model.Task{ID: 4, Title: "Ship", Status: model.StatusPending, Subtasks: []model.Subtask{{Title: "a", Completed: true}}}
	if _, err := NewClient(srv.URL, "").UpdateTask(context.Background(), 4, UpdateFromTask(task)); err != nil {
		t.Fatalf("update: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, got["title"], "Ship")
	assert.Equal(t, got["locked"], false)
	subtasks := got["subtasks"].([]any)
	assert.Equal(t, subtasks[0].(map[string]any)["completed"], true)
}

func TestListReassignmentsPath(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.ListReassignments(context.Background(), 0); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := c.ListReassignments(context.Background(), 9); err != nil {
		t.Fatalf("list: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, paths, []string{"/admin/reassignments", "/users/9/reassignments"})
}

func TestParseSessionUnverified(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"user_id": 12,
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("whatever"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	s, err := ParseSessionUnverified(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assert.Equal(t, s.UserID, int64(12))
	assert.Equal(t, s.IsAdmin(), true)

	if _, err := ParseSessionUnverified("not-a-token"); err == nil {
		t.Fatalf("expected malformed token to fail")
	}
}
