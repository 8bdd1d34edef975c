package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Joseda-hg/teamboard/internal/events"
	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/realtime"
)

const RoleAdmin = "admin"

type identity struct {
	UserID int64
	Role   string
}

func (id identity) admin() bool { return id.Role == RoleAdmin }

// GenerateToken signs a bearer token for user.
func GenerateToken(secret string, user model.User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"name":    user.Name,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}
		userID, ok := claims["user_id"].(float64)
		if !ok || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token carries no user id"})
			return
		}
		role, _ := claims["role"].(string)

		c.Set("identity", identity{UserID: int64(userID), Role: role})
		c.Next()
	}
}

func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentIdentity(c).admin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) identity {
	v, _ := c.Get("identity")
	id, _ := v.(identity)
	return id
}

// broadcastingAuth signs private channel subscriptions. Project channels are
// limited to members and admins.
func (s *Server) broadcastingAuth(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "broker disabled"})
		return
	}
	socketID := strings.TrimSpace(c.PostForm("socket_id"))
	channel := strings.TrimSpace(c.PostForm("channel_name"))
	if socketID == "" || !realtime.IsPrivate(channel) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "socket_id and a private channel_name are required"})
		return
	}

	who := currentIdentity(c)
	if !who.admin() {
		allowed, err := s.mayJoin(c, who.UserID, strings.TrimPrefix(channel, realtime.PrivatePrefix))
		if err != nil {
			writeError(c, err)
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed on " + channel})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"auth": s.hub.Authorize(socketID, channel)})
}

func (s *Server) mayJoin(c *gin.Context, userID int64, channel string) (bool, error) {
	const prefix = "projects."
	if !strings.HasPrefix(channel, prefix) {
		return false, nil
	}
	projectID, err := strconv.ParseInt(strings.TrimPrefix(channel, prefix), 10, 64)
	if err != nil || events.ProjectChannel(projectID) != channel {
		return false, nil
	}
	members, err := s.store.ProjectMembers(c.Request.Context(), projectID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.ID == userID {
			return true, nil
		}
	}
	return false, nil
}
