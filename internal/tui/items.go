package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/unlock"
)

const dayLayout = "2006-01-02"

var statusFilters = []string{"", model.StatusPending, model.StatusCompleted, model.StatusLate, model.StatusRejected, model.StatusReassigned}

func stateMarker(state unlock.State) string {
	switch state {
	case unlock.Completed:
		return "✓"
	case unlock.Current:
		return "▶"
	default:
		return "✗"
	}
}

// clock returns the HH:MM part of a server timestamp.
func clock(ts string) string {
	if len(ts) < 16 {
		return "--:--"
	}
	return ts[11:16]
}

func statusLabel(task model.Task) string {
	if task.DisplayStatus != "" {
		return task.DisplayStatus
	}
	return task.Status
}

func subtaskProgress(task model.Task) string {
	if len(task.Subtasks) == 0 {
		return ""
	}
	done := 0
	for _, st := range task.Subtasks {
		if st.Completed {
			done++
		}
	}
	return fmt.Sprintf(" [%d/%d]", done, len(task.Subtasks))
}

func ownerName(task model.Task) string {
	if task.User != nil && task.User.Name != "" {
		return task.User.Name
	}
	return fmt.Sprintf("#%d", task.UserID)
}

func formatQueueEntry(entry unlock.Entry) string {
	label := ""
	if entry.State == unlock.Locked {
		label = " locked"
	}
	return fmt.Sprintf("%s %s %s%s | %s%s", stateMarker(entry.State), clock(entry.Task.StartTime), entry.Task.Title, subtaskProgress(entry.Task), statusLabel(entry.Task), label)
}

func formatBoardTask(task model.Task) string {
	return fmt.Sprintf("%s %s | %s%s | %s", clock(task.StartTime), ownerName(task), task.Title, subtaskProgress(task), statusLabel(task))
}

func recipientsLabel(note model.DailyNote) string {
	if len(note.Recipients) == 0 {
		return "everyone"
	}
	names := make([]string, 0, len(note.Recipients))
	for _, r := range note.Recipients {
		if r.Name != "" {
			names = append(names, r.Name)
			continue
		}
		names = append(names, fmt.Sprintf("#%d", r.ID))
	}
	return strings.Join(names, ",")
}

func formatNote(note model.DailyNote) string {
	return fmt.Sprintf("%s | to %s", note.Title, recipientsLabel(note))
}

func userName(ref *model.UserRef) string {
	if ref == nil {
		return "?"
	}
	return ref.Name
}

func formatReassignment(entry model.Reassignment) string {
	line := fmt.Sprintf("%s %s | %s -> %s", model.DayOf(entry.CreatedAt), entry.Task.Title, userName(entry.FromUser), userName(entry.ToUser))
	if entry.Reason != "" {
		line += " | " + entry.Reason
	}
	return line
}

func nextStatusFilter(current string) string {
	for i, status := range statusFilters {
		if status == current {
			return statusFilters[(i+1)%len(statusFilters)]
		}
	}
	return statusFilters[0]
}

func shiftDate(date string, days int) (string, error) {
	parsed, err := time.Parse(dayLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", date)
	}
	return parsed.AddDate(0, 0, days).Format(dayLayout), nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
