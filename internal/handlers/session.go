package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bodylog-backend/internal/middleware"
	"bodylog-backend/internal/session"
)

type SessionHandler struct {
	sessions *session.Manager
}

func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Logout drops the caller's session and clears its records.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.sessions.Close(middleware.UserID(c))
	c.Status(http.StatusNoContent)
}
