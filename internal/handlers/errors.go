package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ataryouth/internal/apperror"
)

const msgInternal = "Internal server error"

func (h HandlerSet) respondError(c *gin.Context, err error) {
	h.respondErrorStatus(c, apperror.Status(apperror.KindOf(err)), err)
}

// respondErrorStatus renders err with an explicit status. Unexpected errors
// are logged and their cause is only exposed in development.
func (h HandlerSet) respondErrorStatus(c *gin.Context, status int, err error) {
	message := msgInternal
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}

	body := gin.H{"success": false, "message": message}
	if apperror.KindOf(err) == apperror.KindUnexpected {
		_ = c.Error(err)
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg(message)
		if h.cfg.IsDevelopment() {
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}
