package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Joseda-hg/teamboard/internal/db"
	"github.com/Joseda-hg/teamboard/internal/events"
)

type noteBody struct {
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	Date         string  `json:"date"`
	RecipientIDs []int64 `json:"recipient_ids"`
}

func (b noteBody) input() db.NoteInput {
	return db.NoteInput{Title: b.Title, Content: b.Content, Date: b.Date, RecipientIDs: b.RecipientIDs}
}

func (s *Server) listNotes(c *gin.Context) {
	q := db.NoteQuery{Date: c.Query("date")}
	if who := currentIdentity(c); !who.admin() {
		q.ViewerID = who.UserID
	}
	notes, err := s.store.ListNotes(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) createNote(c *gin.Context) {
	var body noteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.store.CreateNote(c.Request.Context(), body.input())
	if err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelDailyNotes, events.DailyNoteCreated{Note: note})
	c.JSON(http.StatusCreated, note)
}

func (s *Server) updateNote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body noteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := s.store.UpdateNote(c.Request.Context(), id, body.input())
	if err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelDailyNotes, events.DailyNoteUpdated{Note: note})
	c.JSON(http.StatusOK, note)
}

func (s *Server) deleteNote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteNote(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelDailyNotes, events.DailyNoteDeleted{ID: id})
	c.Status(http.StatusNoContent)
}
