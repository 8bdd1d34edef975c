package screen

import (
	"context"

	"github.com/Joseda-hg/teamboard/internal/api"
	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/optimistic"
	"github.com/Joseda-hg/teamboard/internal/reconcile"
	"github.com/Joseda-hg/teamboard/internal/view"
	"github.com/Joseda-hg/teamboard/internal/visibility"
)

// Notes lists daily notes newest first. Members only hold the notes
// addressed to them or to everyone; a recipient change moves a note in or out.
type Notes struct {
	*base
	date  string
	notes *view.Store[model.DailyNote]
	coord *optimistic.Coordinator[model.DailyNote]
}

func NewNotes(env Env, date string) *Notes {
	n := &Notes{base: newBase("notes", env), date: date}
	n.notes = view.NewStore("notes", reconcile.ByTime(func(d model.DailyNote) string { return d.CreatedAt }, true), n.fetch)
	n.notes.SetFilter(n.match())
	n.coord = optimistic.New(n.notes, n.notify)

	for _, name := range []string{events.NameDailyNoteCreated, events.NameDailyNoteUpdated, events.NameDailyNoteDeleted} {
		n.listen(events.ChannelDailyNotes, name, n.onNote, n.env.Session.UserID, date)
	}
	n.onClose(n.notes.Close)
	n.poll(n.notes.Refresh)
	return n
}

func (n *Notes) match() reconcile.Predicate[model.DailyNote] {
	date := n.date
	visible := visibility.For(n.env.Session.UserID)
	admin := n.env.Session.IsAdmin()
	return func(note model.DailyNote) bool {
		if date != "" && model.DayOf(note.Date) != date {
			return false
		}
		return admin || visible(note)
	}
}

func (n *Notes) fetch(ctx context.Context) ([]model.DailyNote, error) {
	return n.env.API.ListNotes(ctx, api.NoteQuery{Date: n.date})
}

func (n *Notes) onNote(ev events.Event) {
	switch e := ev.(type) {
	case events.DailyNoteCreated:
		n.notes.Created(e.Note)
	case events.DailyNoteUpdated:
		n.notes.Updated(e.Note)
	case events.DailyNoteDeleted:
		n.notes.Deleted(e.ID)
	}
}

func (n *Notes) Refresh(ctx context.Context) error { return n.notes.Refresh(ctx) }

func (n *Notes) Items() []model.DailyNote { return n.notes.Items() }

func (n *Notes) Changes() (<-chan struct{}, func()) {
	return mergeChanges(n.notes.Subscribe)
}

func (n *Notes) Snapshot() any { return n.notes.Items() }

// Edit applies in locally and sends it. Recipient ids are shown by id until
// the server echoes the note back with names.
func (n *Notes) Edit(ctx context.Context, id int64, in api.NoteInput) error {
	return n.coord.Mutate(ctx, id, "edit note", func(note model.DailyNote) model.DailyNote {
		note.Title = in.Title
		note.Content = in.Content
		note.Date = in.Date
		recipients := make([]model.Recipient, 0, len(in.RecipientIDs))
		for _, rid := range in.RecipientIDs {
			recipients = append(recipients, model.Recipient{ID: rid})
		}
		note.Recipients = recipients
		return note
	}, func(ctx context.Context) error {
		_, err := n.env.API.UpdateNote(ctx, id, in)
		return err
	})
}

func (n *Notes) Delete(ctx context.Context, id int64) error {
	return n.coord.Delete(ctx, id, "delete note", func(ctx context.Context) error {
		return n.env.API.DeleteNote(ctx, id)
	})
}
