package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Joseda-hg/teamboard/internal/db"
	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
)

type taskBody struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	UserID      int64           `json:"user_id"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	Status      string          `json:"status"`
	Subtasks    []model.Subtask `json:"subtasks"`
	Locked      bool            `json:"locked"`
	ProjectID   *int64          `json:"project_id"`
}

// taskUpdateBody leaves absent fields untouched.
type taskUpdateBody struct {
	Title          *string         `json:"title"`
	Description    *string         `json:"description"`
	StartTime      *string         `json:"start_time"`
	EndTime        *string         `json:"end_time"`
	Status         *string         `json:"status"`
	CompletionNote *string         `json:"completion_note"`
	Subtasks       []model.Subtask `json:"subtasks"`
	Locked         *bool           `json:"locked"`
}

type reassignBody struct {
	ToUserID  int64  `json:"to_user_id"`
	Reason    string `json:"reason"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// listTasks supports date, user_id and include_overdue. Members only ever
// see their own tasks.
func (s *Server) listTasks(c *gin.Context) {
	q := db.TaskQuery{
		Date:           c.Query("date"),
		IncludeOverdue: c.Query("include_overdue") == "1" || c.Query("include_overdue") == "true",
	}
	if value := c.Query("user_id"); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		q.UserID = id
	}
	if who := currentIdentity(c); !who.admin() {
		q.UserID = who.UserID
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) getTask(c *gin.Context) {
	task, ok := s.visibleTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) createTask(c *gin.Context) {
	var body taskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), db.TaskInput{
		Title:       body.Title,
		Description: body.Description,
		UserID:      body.UserID,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		Status:      body.Status,
		Subtasks:    body.Subtasks,
		Locked:      body.Locked,
		ProjectID:   body.ProjectID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelTasks, events.TaskCreated{Task: task})
	c.JSON(http.StatusCreated, task)
}

// updateTask lets members change the progress fields of their own tasks;
// admins may change everything.
func (s *Server) updateTask(c *gin.Context) {
	before, ok := s.visibleTask(c)
	if !ok {
		return
	}

	var body taskUpdateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := db.TaskPatch{
		Status:         body.Status,
		CompletionNote: body.CompletionNote,
		Subtasks:       body.Subtasks,
	}
	if currentIdentity(c).admin() {
		patch.Title = body.Title
		patch.Description = body.Description
		patch.StartTime = body.StartTime
		patch.EndTime = body.EndTime
		patch.Locked = body.Locked
	}

	task, err := s.store.UpdateTask(c.Request.Context(), before.ID, patch)
	if err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelTasks, events.TaskUpdated{Task: task})
	c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelTasks, events.TaskDeleted{ID: id})
	c.Status(http.StatusNoContent)
}

func (s *Server) reassignTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body reassignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, _, err := s.store.ReassignTask(c.Request.Context(), id, db.ReassignInput{
		ToUserID:  body.ToUserID,
		Reason:    body.Reason,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelTasks, events.TaskUpdated{Task: task})
	c.JSON(http.StatusOK, task)
}

// visibleTask loads the :id task, answering 404 when the caller may not see it.
func (s *Server) visibleTask(c *gin.Context) (model.Task, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return model.Task{}, false
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return model.Task{}, false
	}
	if who := currentIdentity(c); !who.admin() && task.UserID != who.UserID {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return model.Task{}, false
	}
	return task, true
}
