package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/chatopinion/internal/models"
	"gorm.io/gorm"
)

// DefaultAuthHeader is used when no header is configured.
const DefaultAuthHeader = "X-User-ID"

const userKey = "chatopinion.user"

// authenticate resolves the caller from the auth header. Requests without
// the header continue anonymously; an unknown or malformed ID is rejected.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(s.deps.AuthHeader))
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid user."})
			return
		}
		var u models.User
		if err := s.deps.DB.WithContext(c.Request.Context()).Preload("Doctor").First(&u, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid user."})
				return
			}
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(userKey, &u)
		c.Next()
	}
}

// currentUser returns the authenticated caller, or nil.
func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
