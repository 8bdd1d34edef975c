package model

import "testing"

func TestTaskFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter TaskFilter
		task   Task
		want   bool
	}{
		{"zero filter", TaskFilter{}, Task{ID: 1}, true},
		{"same day", TaskFilter{Date: "2024-01-01"}, Task{StartTime: "2024-01-01 09:00:00"}, true},
		{"other day", TaskFilter{Date: "2024-01-01"}, Task{StartTime: "2024-01-02 09:00:00"}, false},
		{"rfc3339", TaskFilter{Date: "2024-01-01"}, Task{StartTime: "2024-01-01T09:00:00Z"}, true},
		{"missing start", TaskFilter{Date: "2024-01-01"}, Task{}, false},
		{"previous open", TaskFilter{Date: "2024-01-02", ShowPrevious: true}, Task{StartTime: "2024-01-01 09:00:00", Status: StatusPending}, true},
		{"previous completed", TaskFilter{Date: "2024-01-02", ShowPrevious: true}, Task{StartTime: "2024-01-01 09:00:00", Status: StatusCompleted}, false},
		{"later day with previous", TaskFilter{Date: "2024-01-02", ShowPrevious: true}, Task{StartTime: "2024-01-03 09:00:00"}, false},
		{"owner mismatch", TaskFilter{UserID: 7}, Task{UserID: 8}, false},
		{"owner match", TaskFilter{UserID: 7}, Task{UserID: 7}, true},
		{"status all", TaskFilter{Status: "all"}, Task{Status: StatusRejected}, true},
		{"status mismatch", TaskFilter{Status: StatusLate}, Task{Status: StatusPending}, false},
		{"display status", TaskFilter{Status: StatusLate}, Task{Status: StatusPending, DisplayStatus: StatusLate}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.task); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAllSubtasksDone(t *testing.T) {
	if (Task{}).AllSubtasksDone() {
		t.Fatalf("expected task without subtasks to not be done")
	}
	task := Task{Subtasks: []Subtask{{Title: "a", Completed: true}, {Title: "b"}}}
	if task.AllSubtasksDone() {
		t.Fatalf("expected partially done task to not be done")
	}
	task.Subtasks[1].Completed = true
	if !task.AllSubtasksDone() {
		t.Fatalf("expected all subtasks done")
	}
}

func TestCloneDoesNotAliasSubtasks(t *testing.T) {
	orig := Task{ID: 1, Subtasks: []Subtask{{Title: "a"}}}
	cp := orig.Clone()
	cp.Subtasks[0].Completed = true
	if orig.Subtasks[0].Completed {
		t.Fatalf("expected clone to copy subtasks")
	}
}

func TestNormalizeStatus(t *testing.T) {
	if got := NormalizeStatus(" Completed "); got != StatusCompleted {
		t.Fatalf("expected %q, got %q", StatusCompleted, got)
	}
	if got := NormalizeStatus("bogus"); got != StatusPending {
		t.Fatalf("expected %q, got %q", StatusPending, got)
	}
}
