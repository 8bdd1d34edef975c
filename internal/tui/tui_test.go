package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"

	"github.com/Joseda-hg/teamboard/internal/api"
	"github.com/Joseda-hg/teamboard/internal/db"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/screen"
	"github.com/Joseda-hg/teamboard/internal/unlock"
	"github.com/Joseda-hg/teamboard/internal/web"
)

const testSecret = "tui-secret"

type testEnv struct {
	store  *db.Store
	url    string
	admin  model.User
	member model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := db.NewStore(conn)
	srv := httptest.NewServer(web.NewServer(store, nil, testSecret).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = conn.Close()
	})

	env := &testEnv{store: store, url: srv.URL + "/api"}
	ctx := context.Background()
	if env.admin, err = store.CreateUser(ctx, db.UserInput{Name: "Admin", Role: "admin"}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if env.member, err = store.CreateUser(ctx, db.UserInput{Name: "Mia", Role: "member"}); err != nil {
		t.Fatalf("create member: %v", err)
	}
	return env
}

// newTestUI mounts the screens without a terminal; handlers are called directly.
func (env *testEnv) newTestUI(t *testing.T, user model.User, date string) *UI {
	t.Helper()
	token, err := web.GenerateToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	ui := newUI(context.Background(), screen.Env{
		API:          api.NewClient(env.url, token),
		Session:      api.Session{UserID: user.ID, Role: user.Role, Name: user.Name},
		PollInterval: time.Hour,
	}, date)
	ui.mount()
	t.Cleanup(ui.unmount)
	if err := ui.refreshAll(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return ui
}

func (env *testEnv) task(t *testing.T, owner model.User, start string, status string, subtasks ...string) model.Task {
	t.Helper()
	input := db.TaskInput{Title: "task " + start, UserID: owner.ID, StartTime: start, Status: status}
	for _, title := range subtasks {
		input.Subtasks = append(input.Subtasks, model.Subtask{Title: title})
	}
	task, err := env.store.CreateTask(context.Background(), input)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (env *testEnv) stored(t *testing.T, id int64) model.Task {
	t.Helper()
	task, err := env.store.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("get task %d: %v", id, err)
	}
	return task
}

func TestQueueActionsFollowUnlockOrder(t *testing.T) {
	env := newTestEnv(t)
	first := env.task(t, env.member, "2024-01-01 09:00:00", model.StatusPending, "prepare")
	second := env.task(t, env.member, "2024-01-01 10:00:00", model.StatusPending)

	ui := env.newTestUI(t, env.member, "2024-01-01")
	entries := ui.queueEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 queue entries, got %d", len(entries))
	}
	assert.Equal(t, entries[0].State, unlock.Current)
	assert.Equal(t, entries[1].State, unlock.Locked)

	if err := ui.moveDown(nil, nil); err != nil {
		t.Fatalf("move down: %v", err)
	}
	if err := ui.complete(nil, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if ui.form != nil {
		t.Fatalf("expected locked task to refuse the completion form")
	}

	if err := ui.moveUp(nil, nil); err != nil {
		t.Fatalf("move up: %v", err)
	}
	if err := ui.toggleSubtask(nil, nil); err != nil {
		t.Fatalf("toggle subtask: %v", err)
	}
	if !env.stored(t, first.ID).Subtasks[0].Completed {
		t.Fatalf("expected subtask to be completed on the server")
	}

	if err := ui.complete(nil, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if ui.form == nil {
		t.Fatalf("expected completion form")
	}
	ui.form.fields[fieldNote].Value = "done early"
	if err := ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assert.Equal(t, ui.status, "")

	stored := env.stored(t, first.ID)
	assert.Equal(t, stored.Status, model.StatusCompleted)
	assert.Equal(t, stored.CompletionNote, "done early")

	current, ok := ui.queue.Current()
	if !ok || current.ID != second.ID {
		t.Fatalf("expected second task to unlock, got %+v", current)
	}
}

func TestBoardFilterKeys(t *testing.T) {
	env := newTestEnv(t)
	open := env.task(t, env.member, "2024-01-01 09:00:00", model.StatusPending)
	env.task(t, env.member, "2024-01-01 10:00:00", model.StatusCompleted)
	tomorrow := env.task(t, env.member, "2024-01-02 09:00:00", model.StatusPending)

	ui := env.newTestUI(t, env.admin, "2024-01-01")
	assert.Equal(t, len(ui.boardTasks()), 2)

	if err := ui.cycleStatus(nil, nil); err != nil {
		t.Fatalf("cycle status: %v", err)
	}
	assert.Equal(t, ui.filter.Status, model.StatusPending)
	tasks := ui.boardTasks()
	if len(tasks) != 1 || tasks[0].ID != open.ID {
		t.Fatalf("expected only the open task, got %+v", tasks)
	}

	if err := ui.nextDay(nil, nil); err != nil {
		t.Fatalf("next day: %v", err)
	}
	assert.Equal(t, ui.date, "2024-01-02")
	assert.Equal(t, ui.queue.Date(), "2024-01-02")
	tasks = ui.boardTasks()
	if len(tasks) != 1 || tasks[0].ID != tomorrow.ID {
		t.Fatalf("expected the next day's task, got %+v", tasks)
	}

	if err := ui.togglePrevious(nil, nil); err != nil {
		t.Fatalf("toggle previous: %v", err)
	}
	assert.Equal(t, len(ui.boardTasks()), 2)

	if err := ui.previousDay(nil, nil); err != nil {
		t.Fatalf("previous day: %v", err)
	}
	assert.Equal(t, ui.date, "2024-01-01")
}

func TestBoardDeleteAndReject(t *testing.T) {
	env := newTestEnv(t)
	doomed := env.task(t, env.member, "2024-01-01 09:00:00", model.StatusPending)
	rejected := env.task(t, env.member, "2024-01-01 10:00:00", model.StatusPending)

	ui := env.newTestUI(t, env.admin, "2024-01-01")
	if err := ui.focusBoard(nil, nil); err != nil {
		t.Fatalf("focus board: %v", err)
	}

	if err := ui.deleteTask(nil, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.store.GetTask(context.Background(), doomed.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected deleted task, got %v", err)
	}
	assert.Equal(t, len(ui.boardTasks()), 1)

	if err := ui.reject(nil, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if ui.form == nil || ui.form.kind != formReject {
		t.Fatalf("expected reject form")
	}
	ui.form.fields[fieldNote].Value = "missed the deadline"
	if err := ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assert.Equal(t, env.stored(t, rejected.ID).Status, model.StatusRejected)
}

func TestMemberHasNoBoard(t *testing.T) {
	env := newTestEnv(t)
	env.task(t, env.member, "2024-01-01 09:00:00", model.StatusPending)

	ui := env.newTestUI(t, env.member, "2024-01-01")
	if ui.board != nil {
		t.Fatalf("expected no board for members")
	}
	if err := ui.focusBoard(nil, nil); err != nil {
		t.Fatalf("focus board: %v", err)
	}
	if err := ui.reject(nil, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if ui.form != nil {
		t.Fatalf("expected no form")
	}
	assert.Equal(t, ui.status, "tasks are rejected from the board")
}

func TestReassignFormValidatesUser(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, env.member, "2024-01-01 09:00:00", model.StatusPending)

	ui := env.newTestUI(t, env.admin, "2024-01-01")
	if err := ui.focusBoard(nil, nil); err != nil {
		t.Fatalf("focus board: %v", err)
	}
	if err := ui.reassign(nil, nil); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	ui.form.fields[fieldReassignTo].Value = "abc"
	if err := ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	assert.Equal(t, ui.status, "invalid user id")
	if ui.form == nil {
		t.Fatalf("expected form to stay open")
	}

	ui.form.fields[fieldReassignTo].Value = strconv.FormatInt(env.admin.ID, 10)
	ui.form.fields[fieldReassignReason].Value = "coverage"
	if err := ui.submitForm(nil, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	stored := env.stored(t, task.ID)
	assert.Equal(t, stored.UserID, env.admin.ID)
	assert.Equal(t, stored.Status, model.StatusReassigned)
}

func TestFormatting(t *testing.T) {
	next, err := shiftDate("2024-01-31", 1)
	if err != nil {
		t.Fatalf("shift date: %v", err)
	}
	assert.Equal(t, next, "2024-02-01")
	if _, err := shiftDate("soon", 1); err == nil {
		t.Fatalf("expected invalid date error")
	}

	assert.Equal(t, nextStatusFilter(""), model.StatusPending)
	assert.Equal(t, nextStatusFilter(model.StatusReassigned), "")
	assert.Equal(t, clock("2024-01-01 09:30:00"), "09:30")
	assert.Equal(t, clock("2024-01-01"), "--:--")

	entry := unlock.Entry{
		Task:  model.Task{Title: "Ship", StartTime: "2024-01-01 09:30:00", Status: model.StatusPending, Subtasks: []model.Subtask{{Completed: true}, {}}},
		State: unlock.Locked,
	}
	assert.Equal(t, formatQueueEntry(entry), "✗ 09:30 Ship [1/2] | pending locked")
	assert.Equal(t, recipientsLabel(model.DailyNote{}), "everyone")
}
