// Package visibility decides which daily notes a member may see.
package visibility

import "github.com/Joseda-hg/teamboard/internal/model"

// IsVisible reports whether note is shown to userID. A note without
// recipients is a broadcast and is visible to everyone.
func IsVisible(note model.DailyNote, userID int64) bool {
	if len(note.Recipients) == 0 {
		return true
	}
	for _, r := range note.Recipients {
		if r.ID == userID {
			return true
		}
	}
	return false
}

// For returns a predicate bound to userID, usable as a view store filter.
func For(userID int64) func(model.DailyNote) bool {
	return func(note model.DailyNote) bool {
		return IsVisible(note, userID)
	}
}

// Filter keeps the notes visible to userID, preserving order.
func Filter(notes []model.DailyNote, userID int64) []model.DailyNote {
	out := make([]model.DailyNote, 0, len(notes))
	for _, note := range notes {
		if IsVisible(note, userID) {
			out = append(out, note)
		}
	}
	return out
}
