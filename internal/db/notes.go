package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/visibility"
)

type NoteInput struct {
	Title        string
	Content      string
	Date         string
	RecipientIDs []int64
}

type NoteQuery struct {
	Date string
	// ViewerID, when set, keeps only notes visible to that user.
	ViewerID int64
}

func (s *Store) CreateNote(ctx context.Context, input NoteInput) (model.DailyNote, error) {
	if err := validateNote(input); err != nil {
		return model.DailyNote{}, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.DailyNote{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO daily_notes (title, content, date, created_at) VALUES (?, ?, ?, ?)",
		strings.TrimSpace(input.Title), input.Content, strings.TrimSpace(input.Date), s.now())
	if err != nil {
		return model.DailyNote{}, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.DailyNote{}, err
	}
	if err := setRecipients(ctx, tx, id, input.RecipientIDs); err != nil {
		return model.DailyNote{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.DailyNote{}, err
	}
	return s.GetNote(ctx, id)
}

func (s *Store) UpdateNote(ctx context.Context, id int64, input NoteInput) (model.DailyNote, error) {
	if err := validateNote(input); err != nil {
		return model.DailyNote{}, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.DailyNote{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE daily_notes SET title = ?, content = ?, date = ? WHERE id = ?",
		strings.TrimSpace(input.Title), input.Content, strings.TrimSpace(input.Date), id)
	if err != nil {
		return model.DailyNote{}, fmt.Errorf("update note %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.DailyNote{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM daily_note_recipients WHERE note_id = ?", id); err != nil {
		return model.DailyNote{}, err
	}
	if err := setRecipients(ctx, tx, id, input.RecipientIDs); err != nil {
		return model.DailyNote{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.DailyNote{}, err
	}
	return s.GetNote(ctx, id)
}

func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM daily_notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) GetNote(ctx context.Context, id int64) (model.DailyNote, error) {
	var n model.DailyNote
	err := s.DB.QueryRowContext(ctx, "SELECT id, title, content, date, created_at FROM daily_notes WHERE id = ?", id).
		Scan(&n.ID, &n.Title, &n.Content, &n.Date, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyNote{}, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.DailyNote{}, err
	}
	recipients, err := s.recipients(ctx, []int64{id})
	if err != nil {
		return model.DailyNote{}, err
	}
	n.Recipients = recipients[id]
	if n.Recipients == nil {
		n.Recipients = []model.Recipient{}
	}
	return n, nil
}

// ListNotes returns notes newest first.
func (s *Store) ListNotes(ctx context.Context, q NoteQuery) ([]model.DailyNote, error) {
	query := "SELECT id, title, content, date, created_at FROM daily_notes"
	args := []any{}
	if q.Date != "" {
		query += " WHERE date = ?"
		args = append(args, q.Date)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	notes := []model.DailyNote{}
	ids := []int64{}
	for rows.Next() {
		var n model.DailyNote
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Date, &n.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		notes = append(notes, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	recipients, err := s.recipients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range notes {
		notes[i].Recipients = recipients[notes[i].ID]
		if notes[i].Recipients == nil {
			notes[i].Recipients = []model.Recipient{}
		}
	}
	if q.ViewerID != 0 {
		notes = visibility.Filter(notes, q.ViewerID)
	}
	return notes, nil
}

func (s *Store) recipients(ctx context.Context, noteIDs []int64) (map[int64][]model.Recipient, error) {
	out := map[int64][]model.Recipient{}
	if len(noteIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(noteIDs)), ",")
	args := make([]any, len(noteIDs))
	for i, id := range noteIDs {
		args[i] = id
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT r.note_id, u.id, u.name
		FROM daily_note_recipients r JOIN users u ON u.id = r.user_id
		WHERE r.note_id IN (`+placeholders+`) ORDER BY u.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var noteID int64
		var r model.Recipient
		if err := rows.Scan(&noteID, &r.ID, &r.Name); err != nil {
			return nil, err
		}
		out[noteID] = append(out[noteID], r)
	}
	return out, rows.Err()
}

func setRecipients(ctx context.Context, tx *sql.Tx, noteID int64, userIDs []int64) error {
	seen := map[int64]struct{}{}
	for _, userID := range userIDs {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		if _, err := tx.ExecContext(ctx, "INSERT INTO daily_note_recipients (note_id, user_id) VALUES (?, ?)", noteID, userID); err != nil {
			return fmt.Errorf("add recipient %d: %w", userID, err)
		}
	}
	return nil
}

func validateNote(input NoteInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return invalid("note title is required")
	}
	if len(model.DayOf(input.Date)) != 10 {
		return invalid("note date is required")
	}
	return nil
}
