package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/Joseda-hg/teamboard/internal/broker"
	"github.com/Joseda-hg/teamboard/internal/db"
	"github.com/Joseda-hg/teamboard/internal/events"
)

// Server is the development API: REST under /api and the broker websocket
// under /app/:key. Every mutation is published to the broker after commit.
type Server struct {
	store  *db.Store
	hub    *broker.Hub
	secret []byte
}

func NewServer(store *db.Store, hub *broker.Hub, jwtSecret string) *Server {
	return &Server{store: store, hub: hub, secret: []byte(jwtSecret)}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logRequests())

	r.GET("/app/:key", s.websocket)

	api := r.Group("/api", s.authRequired())
	admin := api.Group("", adminOnly())

	api.POST("/broadcasting/auth", s.broadcastingAuth)

	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/:id", s.getTask)
	api.PUT("/tasks/:id", s.updateTask)
	admin.POST("/tasks", s.createTask)
	admin.DELETE("/tasks/:id", s.deleteTask)
	admin.POST("/tasks/:id/reassign", s.reassignTask)

	api.GET("/daily-note", s.listNotes)
	admin.POST("/daily-note", s.createNote)
	admin.PUT("/daily-note/:id", s.updateNote)
	admin.DELETE("/daily-note/:id", s.deleteNote)

	api.GET("/users", s.listUsers)
	admin.POST("/users", s.createUser)
	api.GET("/users/:id/reassignments", s.listUserReassignments)
	admin.GET("/admin/reassignments", s.listReassignments)

	api.GET("/projects/:id", s.getProject)
	admin.DELETE("/projects/:id/members/:userId", s.removeProjectMember)
	admin.DELETE("/projects/:id", s.deleteProject)

	return r
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) websocket(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "broker disabled"})
		return
	}
	s.hub.Serve(c.Writer, c.Request, c.Param("key"))
}

// publish broadcasts ev on channel. A missing hub makes it a no-op.
func (s *Server) publish(channel string, ev events.Event) {
	if s.hub == nil {
		return
	}
	payload, err := events.Encode(ev)
	if err != nil {
		glog.Infof("[srv]encode %s error = %s", ev.EventName(), err)
		return
	}
	s.hub.Publish(channel, ev.EventName(), payload)
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		glog.V(1).Infof("[srv]%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	var verr *db.ValidationError
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Message})
	default:
		glog.Infof("[srv]%s %s error = %s", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
