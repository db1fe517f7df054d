package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/chatopinion/internal/apperr"
	"github.com/zulandar/chatopinion/internal/conversation"
)

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		ve  *apperr.ValidationError
		aze *apperr.AuthorizationError
		ane *apperr.AuthenticationError
		nfe *apperr.NotFoundError
		ate *conversation.AttachError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ve.Fields)
	case errors.As(err, &aze):
		c.JSON(http.StatusForbidden, gin.H{"message": aze.Message})
	case errors.As(err, &ane):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": ane.Message})
	case errors.As(err, &nfe):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case errors.As(err, &ate):
		log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Message saved but its attachments could not be stored.",
			"id":     ate.MessageID,
		})
	default:
		log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}
