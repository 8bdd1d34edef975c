package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Joseda-hg/teamboard/internal/model"
)

func TestCreateTaskPersistsSubtasksAndOwner(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustUser(t, store, "Ana")
	created, err := store.CreateTask(ctx, TaskInput{
		Title:     "Write tests",
		UserID:    user.ID,
		StartTime: "2024-01-01 09:00:00",
		EndTime:   "2024-01-01 17:00:00",
		Status:    "Pending",
		Subtasks:  []model.Subtask{{Title: "unit"}, {Title: " "}, {Title: "integration", Completed: true}},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected task ID to be set")
	}
	if created.Status != model.StatusPending {
		t.Fatalf("expected status 'pending', got %q", created.Status)
	}
	if len(created.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(created.Subtasks))
	}
	if !created.Subtasks[1].Completed {
		t.Fatalf("expected second subtask to be completed")
	}
	if created.User == nil || created.User.Name != "Ana" {
		t.Fatalf("expected owner Ana, got %+v", created.User)
	}
}

func TestCreateTaskRequiresKnownUser(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	_, err := store.CreateTask(context.Background(), TaskInput{Title: "x", UserID: 99, StartTime: "2024-01-01 09:00:00"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTasksByDateAndOverdue(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ana := mustUser(t, store, "Ana")
	ben := mustUser(t, store, "Ben")
	old := mustTask(t, store, ana.ID, "2024-01-01 09:00:00")
	oldDone := mustTask(t, store, ana.ID, "2024-01-01 10:00:00")
	today := mustTask(t, store, ana.ID, "2024-01-02 09:00:00")
	other := mustTask(t, store, ben.ID, "2024-01-02 11:00:00")

	status := model.StatusCompleted
	if _, err := store.UpdateTask(ctx, oldDone.ID, TaskPatch{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}

	tasks, err := store.ListTasks(ctx, TaskQuery{Date: "2024-01-02"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(tasks); !equalIDs(got, []int64{today.ID, other.ID}) {
		t.Fatalf("expected today's tasks, got %v", got)
	}

	tasks, err = store.ListTasks(ctx, TaskQuery{Date: "2024-01-02", UserID: ana.ID, IncludeOverdue: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(tasks); !equalIDs(got, []int64{old.ID, today.ID}) {
		t.Fatalf("expected overdue plus today for Ana, got %v", got)
	}
}

func TestDisplayStatusMarksLate(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	store.Now = func() time.Time { return time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC) }

	ana := mustUser(t, store, "Ana")
	task, err := store.CreateTask(context.Background(), TaskInput{
		Title: "late", UserID: ana.ID, StartTime: "2024-01-01 09:00:00", EndTime: "2024-01-01 10:00:00",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != model.StatusPending || task.DisplayStatus != model.StatusLate {
		t.Fatalf("expected pending/late, got %s/%s", task.Status, task.DisplayStatus)
	}
}

func TestUpdateTaskPatchesOnlySetFields(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ana := mustUser(t, store, "Ana")
	task := mustTask(t, store, ana.ID, "2024-01-01 09:00:00")

	locked := true
	note := "done"
	status := "completed"
	updated, err := store.UpdateTask(ctx, task.ID, TaskPatch{
		Locked:         &locked,
		Status:         &status,
		CompletionNote: &note,
		Subtasks:       []model.Subtask{{Title: "a", Completed: true}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != task.Title {
		t.Fatalf("expected title unchanged, got %q", updated.Title)
	}
	if !updated.Locked || updated.CompletionNote != "done" || updated.Status != model.StatusCompleted {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if len(updated.Subtasks) != 1 || !updated.Subtasks[0].Completed {
		t.Fatalf("expected subtasks replaced, got %+v", updated.Subtasks)
	}
}

func TestDeleteTask(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ana := mustUser(t, store, "Ana")
	task := mustTask(t, store, ana.ID, "2024-01-01 09:00:00")
	if err := store.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestReassignAppendsLog(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ana := mustUser(t, store, "Ana")
	ben := mustUser(t, store, "Ben")
	cid := mustUser(t, store, "Cid")
	task := mustTask(t, store, ana.ID, "2024-01-01 09:00:00")

	moved, entry, err := store.ReassignTask(ctx, task.ID, ReassignInput{ToUserID: ben.ID, Reason: "vacation"})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if moved.UserID != ben.ID || moved.Status != model.StatusReassigned {
		t.Fatalf("expected task owned by Ben and reassigned, got %d/%s", moved.UserID, moved.Status)
	}
	if moved.StartTime != task.StartTime {
		t.Fatalf("expected schedule kept, got %q", moved.StartTime)
	}
	if entry.FromUser == nil || entry.FromUser.ID != ana.ID || entry.ToUser.ID != ben.ID {
		t.Fatalf("unexpected log entry %+v", entry)
	}

	if _, _, err := store.ReassignTask(ctx, task.ID, ReassignInput{ToUserID: cid.ID, StartTime: "2024-01-03 09:00:00"}); err != nil {
		t.Fatalf("second reassign: %v", err)
	}
	_, _, err = store.ReassignTask(ctx, task.ID, ReassignInput{ToUserID: cid.ID})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError reassigning to the current owner, got %v", err)
	}

	all, err := store.ListReassignments(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(all))
	}
	if all[0].ToUser.ID != cid.ID || all[1].Reason != "vacation" {
		t.Fatalf("expected newest first and earlier rows untouched, got %+v", all)
	}

	forAna, err := store.ListReassignments(ctx, ana.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(forAna) != 1 {
		t.Fatalf("expected 1 entry for Ana, got %d", len(forAna))
	}
}

func TestNotesRecipientsAndVisibility(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ana := mustUser(t, store, "Ana")
	ben := mustUser(t, store, "Ben")

	broadcast, err := store.CreateNote(ctx, NoteInput{Title: "All hands", Date: "2024-01-01"})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if broadcast.Recipients == nil || len(broadcast.Recipients) != 0 {
		t.Fatalf("expected empty recipient set, got %v", broadcast.Recipients)
	}
	private, err := store.CreateNote(ctx, NoteInput{Title: "For Ana", Date: "2024-01-01", RecipientIDs: []int64{ana.ID, ana.ID}})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if len(private.Recipients) != 1 || private.Recipients[0].Name != "Ana" {
		t.Fatalf("unexpected recipients %+v", private.Recipients)
	}

	forBen, err := store.ListNotes(ctx, NoteQuery{Date: "2024-01-01", ViewerID: ben.ID})
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(forBen) != 1 || forBen[0].ID != broadcast.ID {
		t.Fatalf("expected only the broadcast for Ben, got %+v", forBen)
	}

	updated, err := store.UpdateNote(ctx, private.ID, NoteInput{Title: "For Ben", Date: "2024-01-01", RecipientIDs: []int64{ben.ID}})
	if err != nil {
		t.Fatalf("update note: %v", err)
	}
	if updated.Recipients[0].ID != ben.ID {
		t.Fatalf("expected recipients replaced, got %+v", updated.Recipients)
	}

	if err := store.DeleteNote(ctx, broadcast.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	all, err := store.ListNotes(ctx, NoteQuery{})
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 note left, got %d", len(all))
	}

	if _, err := store.CreateNote(ctx, NoteInput{Title: "no date"}); err == nil {
		t.Fatalf("expected missing date to fail")
	}
}

func TestProjectMembership(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	ana := mustUser(t, store, "Ana")
	ben := mustUser(t, store, "Ben")
	project, err := store.CreateProject(ctx, "Launch", []int64{ana.ID, ben.ID})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if len(project.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(project.Members))
	}

	if _, err := store.CreateTask(ctx, TaskInput{Title: "kickoff", UserID: ana.ID, StartTime: "2024-01-01 09:00:00", ProjectID: &project.ID}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	loaded, err := store.GetProject(ctx, project.ID, "2024-01-01")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if len(loaded.Tasks) != 1 || loaded.Tasks[0].Project == nil || loaded.Tasks[0].Project.Name != "Launch" {
		t.Fatalf("expected project task, got %+v", loaded.Tasks)
	}

	if err := store.RemoveProjectMember(ctx, project.ID, ben.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := store.RemoveProjectMember(ctx, project.ID, ben.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	tasks, err := store.ListTasks(ctx, TaskQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ProjectID != nil {
		t.Fatalf("expected task kept without project, got %+v", tasks)
	}
}

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return NewStore(db), func() {
		_ = db.Close()
	}
}

func mustUser(t *testing.T, store *Store, name string) model.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), UserInput{Name: name})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func mustTask(t *testing.T, store *Store, userID int64, start string) model.Task {
	t.Helper()
	task, err := store.CreateTask(context.Background(), TaskInput{Title: "task " + start, UserID: userID, StartTime: start})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func ids(tasks []model.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamboard.db")
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	store := NewStore(first)
	user := mustUser(t, store, "Ana")
	reminder := true
	task, err := store.CreateTask(ctx, TaskInput{Title: "Ping", UserID: user.ID, StartTime: "2024-01-01 09:00:00"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := store.UpdateTask(ctx, task.ID, TaskPatch{ReminderSent: &reminder}); err != nil {
		t.Fatalf("update task: %v", err)
	}
	_ = first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer second.Close()
	got, err := NewStore(second).GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.ReminderSent {
		t.Fatalf("expected reminder_sent to survive a reopen")
	}
}
