package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/teamboard/internal/model"
)

const TimeLayout = "2006-01-02 15:04:05"

var ErrNotFound = errors.New("not found")

// ValidationError reports input the store refuses to write.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

type UserInput struct {
	Name  string
	Email string
	Role  string
}

type TaskInput struct {
	Title       string
	Description string
	UserID      int64
	StartTime   string
	EndTime     string
	Status      string
	Subtasks    []model.Subtask
	Locked      bool
	ProjectID   *int64
}

// TaskPatch updates only the fields that are set.
type TaskPatch struct {
	Title          *string
	Description    *string
	StartTime      *string
	EndTime        *string
	Status         *string
	CompletionNote *string
	Subtasks       []model.Subtask
	Locked         *bool
	ReminderSent   *bool
}

type ReassignInput struct {
	ToUserID  int64
	Reason    string
	StartTime string
	EndTime   string
}

type TaskQuery struct {
	Date           string
	UserID         int64
	ProjectID      int64
	IncludeOverdue bool
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Now: time.Now}
}

func (s *Store) now() string {
	return s.Now().UTC().Format(TimeLayout)
}

func (s *Store) CreateUser(ctx context.Context, input UserInput) (model.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return model.User{}, invalid("user name is required")
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role != "admin" {
		role = "member"
	}

	res, err := s.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, role, created_at) VALUES (?, ?, ?, ?)",
		name, strings.TrimSpace(input.Email), role, s.now())
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := s.DB.QueryRowContext(ctx, "SELECT id, name, email, role FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT id, name, email, role FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) CreateTask(ctx context.Context, input TaskInput) (model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Task{}, invalid("task title is required")
	}
	if strings.TrimSpace(input.StartTime) == "" {
		return model.Task{}, invalid("task start_time is required")
	}
	if _, err := s.GetUser(ctx, input.UserID); err != nil {
		return model.Task{}, err
	}

	subtasks, err := encodeSubtasks(input.Subtasks)
	if err != nil {
		return model.Task{}, err
	}

	var projectID sql.NullInt64
	if input.ProjectID != nil {
		projectID = sql.NullInt64{Int64: *input.ProjectID, Valid: true}
	}

	now := s.now()
	res, err := s.DB.ExecContext(ctx, `INSERT INTO tasks
		(title, description, user_id, start_time, end_time, status, subtasks, locked, project_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		title, input.Description, input.UserID, strings.TrimSpace(input.StartTime), strings.TrimSpace(input.EndTime),
		model.NormalizeStatus(input.Status), subtasks, input.Locked, projectID, now, now)
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, err
	}
	return s.GetTask(ctx, id)
}

const taskSelect = `SELECT t.id, t.title, t.description, t.user_id, u.name, t.start_time, t.end_time, t.status,
	t.subtasks, t.locked, t.completion_note, t.reminder_sent, t.project_id, p.name
	FROM tasks t
	JOIN users u ON u.id = t.user_id
	LEFT JOIN projects p ON p.id = t.project_id`

func (s *Store) GetTask(ctx context.Context, id int64) (model.Task, error) {
	row := s.DB.QueryRowContext(ctx, taskSelect+" WHERE t.id = ?", id)
	task, err := s.scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return task, err
}

// ListTasks selects tasks starting on q.Date. With IncludeOverdue, earlier
// tasks that are not completed are returned too.
func (s *Store) ListTasks(ctx context.Context, q TaskQuery) ([]model.Task, error) {
	where := []string{}
	args := []any{}
	if q.UserID != 0 {
		where = append(where, "t.user_id = ?")
		args = append(args, q.UserID)
	}
	if q.ProjectID != 0 {
		where = append(where, "t.project_id = ?")
		args = append(args, q.ProjectID)
	}
	if q.Date != "" {
		if q.IncludeOverdue {
			where = append(where, "(substr(t.start_time, 1, 10) = ? OR (substr(t.start_time, 1, 10) < ? AND t.status != 'completed'))")
			args = append(args, q.Date, q.Date)
		} else {
			where = append(where, "substr(t.start_time, 1, 10) = ?")
			args = append(args, q.Date)
		}
	}

	query := taskSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.id"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (model.Task, error) {
	before, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, err
	}

	sets := []string{}
	args := []any{}
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Title != nil {
		set("title", strings.TrimSpace(*patch.Title))
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.StartTime != nil {
		set("start_time", strings.TrimSpace(*patch.StartTime))
	}
	if patch.EndTime != nil {
		set("end_time", strings.TrimSpace(*patch.EndTime))
	}
	if patch.Status != nil {
		set("status", model.NormalizeStatus(*patch.Status))
	}
	if patch.CompletionNote != nil {
		set("completion_note", *patch.CompletionNote)
	}
	if patch.Subtasks != nil {
		encoded, err := encodeSubtasks(patch.Subtasks)
		if err != nil {
			return model.Task{}, err
		}
		set("subtasks", encoded)
	}
	if patch.Locked != nil {
		set("locked", *patch.Locked)
	}
	if patch.ReminderSent != nil {
		set("reminder_sent", *patch.ReminderSent)
	}
	if len(sets) == 0 {
		return before, nil
	}
	set("updated_at", s.now())
	args = append(args, id)

	if _, err := s.DB.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return model.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	return s.GetTask(ctx, id)
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// ReassignTask hands the task to another member and appends a log row.
// Existing log rows are never modified.
func (s *Store) ReassignTask(ctx context.Context, id int64, input ReassignInput) (model.Task, model.Reassignment, error) {
	before, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, model.Reassignment{}, err
	}
	if _, err := s.GetUser(ctx, input.ToUserID); err != nil {
		return model.Task{}, model.Reassignment{}, err
	}
	if input.ToUserID == before.UserID {
		return model.Task{}, model.Reassignment{}, invalid("task %d already belongs to user %d", id, input.ToUserID)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, model.Reassignment{}, err
	}
	defer tx.Rollback()

	startTime := strings.TrimSpace(input.StartTime)
	if startTime == "" {
		startTime = before.StartTime
	}
	endTime := strings.TrimSpace(input.EndTime)
	if endTime == "" {
		endTime = before.EndTime
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		"UPDATE tasks SET user_id = ?, start_time = ?, end_time = ?, status = ?, updated_at = ? WHERE id = ?",
		input.ToUserID, startTime, endTime, model.StatusReassigned, now, id); err != nil {
		return model.Task{}, model.Reassignment{}, fmt.Errorf("reassign task %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO reassignments (task_id, task_title, from_user_id, to_user_id, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, before.Title, before.UserID, input.ToUserID, strings.TrimSpace(input.Reason), now)
	if err != nil {
		return model.Task{}, model.Reassignment{}, fmt.Errorf("log reassignment: %w", err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, model.Reassignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, model.Reassignment{}, err
	}

	after, err := s.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, model.Reassignment{}, err
	}
	entry, err := s.getReassignment(ctx, logID)
	if err != nil {
		return model.Task{}, model.Reassignment{}, err
	}
	return after, entry, nil
}

const reassignmentSelect = `SELECT r.id, r.task_id, r.task_title, r.from_user_id, fu.name, r.to_user_id, tu.name, r.reason, r.created_at
	FROM reassignments r
	LEFT JOIN users fu ON fu.id = r.from_user_id
	LEFT JOIN users tu ON tu.id = r.to_user_id`

// ListReassignments returns the log newest first. A non-zero userID keeps
// entries where the user is either side of the handover.
func (s *Store) ListReassignments(ctx context.Context, userID int64) ([]model.Reassignment, error) {
	query := reassignmentSelect
	args := []any{}
	if userID != 0 {
		query += " WHERE r.from_user_id = ? OR r.to_user_id = ?"
		args = append(args, userID, userID)
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Reassignment{}
	for rows.Next() {
		r, err := scanReassignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) getReassignment(ctx context.Context, id int64) (model.Reassignment, error) {
	r, err := scanReassignment(s.DB.QueryRowContext(ctx, reassignmentSelect+" WHERE r.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reassignment{}, fmt.Errorf("reassignment %d: %w", id, ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanTask(row scanner) (model.Task, error) {
	var (
		task        model.Task
		userName    string
		subtasks    string
		projectID   sql.NullInt64
		projectName sql.NullString
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.UserID, &userName,
		&task.StartTime, &task.EndTime, &task.Status, &subtasks, &task.Locked,
		&task.CompletionNote, &task.ReminderSent, &projectID, &projectName); err != nil {
		return model.Task{}, err
	}

	task.User = &model.UserRef{ID: task.UserID, Name: userName}
	if err := json.Unmarshal([]byte(subtasks), &task.Subtasks); err != nil {
		return model.Task{}, fmt.Errorf("decode subtasks of task %d: %w", task.ID, err)
	}
	if task.Subtasks == nil {
		task.Subtasks = []model.Subtask{}
	}
	if projectID.Valid {
		id := projectID.Int64
		task.ProjectID = &id
		task.Project = &model.ProjectRef{ID: id, Name: projectName.String}
	}
	task.DisplayStatus = displayStatus(task, s.Now())
	return task, nil
}

// displayStatus reports late for open tasks whose end time has passed.
func displayStatus(task model.Task, now time.Time) string {
	switch task.Status {
	case model.StatusPending, model.StatusReassigned:
	default:
		return task.Status
	}
	if task.EndTime == "" {
		return task.Status
	}
	end, err := parseTime(task.EndTime)
	if err != nil {
		return task.Status
	}
	if end.Before(now) {
		return model.StatusLate
	}
	return task.Status
}

func parseTime(value string) (time.Time, error) {
	for _, layout := range []string{TimeLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

func scanReassignment(row scanner) (model.Reassignment, error) {
	var (
		r                model.Reassignment
		taskID           sql.NullInt64
		fromID, toID     sql.NullInt64
		fromName, toName sql.NullString
	)
	if err := row.Scan(&r.ID, &taskID, &r.Task.Title, &fromID, &fromName, &toID, &toName, &r.Reason, &r.CreatedAt); err != nil {
		return model.Reassignment{}, err
	}
	r.Task.ID = taskID.Int64
	if fromID.Valid {
		r.FromUser = &model.UserRef{ID: fromID.Int64, Name: fromName.String}
	}
	if toID.Valid {
		r.ToUser = &model.UserRef{ID: toID.Int64, Name: toName.String}
	}
	return r, nil
}

func encodeSubtasks(subtasks []model.Subtask) (string, error) {
	cleaned := make([]model.Subtask, 0, len(subtasks))
	for _, st := range subtasks {
		title := strings.TrimSpace(st.Title)
		if title == "" {
			continue
		}
		cleaned = append(cleaned, model.Subtask{Title: title, Completed: st.Completed})
	}
	data, err := json.Marshal(cleaned)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
