package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Joseda-hg/teamboard/internal/db"
	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/realtime"
)

type userBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.store.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) createUser(c *gin.Context) {
	var body userBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.store.CreateUser(c.Request.Context(), db.UserInput{Name: body.Name, Email: body.Email, Role: body.Role})
	if err != nil {
		writeError(c, err)
		return
	}

	s.publish(events.ChannelUsers, events.UserCreated{})
	c.JSON(http.StatusCreated, user)
}

func (s *Server) listReassignments(c *gin.Context) {
	log, err := s.store.ListReassignments(c.Request.Context(), 0)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func (s *Server) listUserReassignments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if who := currentIdentity(c); !who.admin() && who.UserID != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return
	}
	log, err := s.store.ListReassignments(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func (s *Server) getProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	project, err := s.store.GetProject(c.Request.Context(), id, c.Query("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	if who := currentIdentity(c); !who.admin() {
		member := false
		for _, m := range project.Members {
			if m.ID == who.UserID {
				member = true
				break
			}
		}
		if !member {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) removeProjectMember(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := s.store.RemoveProjectMember(c.Request.Context(), projectID, userID); err != nil {
		writeError(c, err)
		return
	}

	s.publish(realtime.PrivatePrefix+events.ProjectChannel(projectID), events.ProjectMemberRemoved{UserID: userID})
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	s.publish(realtime.PrivatePrefix+events.ProjectChannel(id), events.ProjectDeleted{})
	c.Status(http.StatusNoContent)
}
