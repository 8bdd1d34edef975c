package model

import "strings"

const (
	StatusPending    = "pending"
	StatusCompleted  = "completed"
	StatusLate       = "late"
	StatusRejected   = "rejected"
	StatusReassigned = "reassigned"
)

var Statuses = []string{StatusPending, StatusCompleted, StatusLate, StatusRejected, StatusReassigned}

type UserRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (u User) Key() int64 { return u.ID }

type ProjectRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Members []User `json:"members"`
	Tasks   []Task `json:"tasks,omitempty"`
}

type Subtask struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task timestamps are kept as the server sends them ("2006-01-02 15:04:05"
// or RFC 3339); both sort lexically and carry the day in the first 10 bytes.
type Task struct {
	ID             int64       `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	UserID         int64       `json:"user_id"`
	User           *UserRef    `json:"user,omitempty"`
	StartTime      string      `json:"start_time"`
	EndTime        string      `json:"end_time"`
	Status         string      `json:"status"`
	DisplayStatus  string      `json:"display_status,omitempty"`
	Subtasks       []Subtask   `json:"subtasks"`
	Locked         bool        `json:"locked"`
	CompletionNote string      `json:"completion_note,omitempty"`
	ReminderSent   bool        `json:"reminder_sent"`
	ProjectID      *int64      `json:"project_id,omitempty"`
	Project        *ProjectRef `json:"project,omitempty"`
}

func (t Task) Key() int64 { return t.ID }

// Day returns the calendar day of StartTime, or "" when it is too short.
func (t Task) Day() string {
	return DayOf(t.StartTime)
}

func (t Task) Completed() bool {
	return t.Status == StatusCompleted
}

// AllSubtasksDone reports whether the task has subtasks and every one is completed.
func (t Task) AllSubtasksDone() bool {
	if len(t.Subtasks) == 0 {
		return false
	}
	for _, st := range t.Subtasks {
		if !st.Completed {
			return false
		}
	}
	return true
}

// Clone copies the slice and pointer fields so patches never alias store state.
func (t Task) Clone() Task {
	out := t
	if t.Subtasks != nil {
		out.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	if t.User != nil {
		u := *t.User
		out.User = &u
	}
	if t.ProjectID != nil {
		id := *t.ProjectID
		out.ProjectID = &id
	}
	if t.Project != nil {
		p := *t.Project
		out.Project = &p
	}
	return out
}

type Recipient struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DailyNote with no recipients is a broadcast to every member.
type DailyNote struct {
	ID         int64       `json:"id"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	Date       string      `json:"date"`
	CreatedAt  string      `json:"created_at"`
	Recipients []Recipient `json:"recipients"`
}

func (n DailyNote) Key() int64 { return n.ID }

type TaskSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type Reassignment struct {
	ID        int64       `json:"id"`
	Task      TaskSummary `json:"task"`
	FromUser  *UserRef    `json:"from_user"`
	ToUser    *UserRef    `json:"to_user"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt string      `json:"created_at"`
}

func (r Reassignment) Key() int64 { return r.ID }

// TaskFilter is the ephemeral per-screen view filter. Zero value matches everything.
type TaskFilter struct {
	Date         string `json:"date,omitempty"`
	UserID       int64  `json:"user_id,omitempty"`
	Status       string `json:"status,omitempty"`
	ShowPrevious bool   `json:"show_previous,omitempty"`
}

// Match reports whether the task belongs to the filtered set. With ShowPrevious,
// tasks from earlier days that are still open also match.
func (f TaskFilter) Match(t Task) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.Status != "" && f.Status != "all" && t.Status != f.Status && t.DisplayStatus != f.Status {
		return false
	}
	if f.Date == "" {
		return true
	}
	day := t.Day()
	if day == f.Date {
		return true
	}
	return f.ShowPrevious && day != "" && day < f.Date && !t.Completed()
}

func DayOf(ts string) string {
	ts = strings.TrimSpace(ts)
	if len(ts) < 10 {
		return ""
	}
	return ts[:10]
}

func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, known := range Statuses {
		if s == known {
			return s
		}
	}
	return StatusPending
}
