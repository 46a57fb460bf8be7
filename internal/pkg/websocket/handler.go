package websocket

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/bursar/internal/middleware"
	"github.com/yigit/bursar/internal/pkg/apperrors"
	"github.com/yigit/bursar/internal/pkg/validation"
)

// Handler for WebSocket connections
type Handler struct {
	hub    *Hub
	logger zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// HandleConnection godoc
// @Summary Follow ledger events
// @Description Upgrades to a WebSocket that streams ledger events as JSON, one per line. Optionally limited to one student.
// @Tags ledger, websocket
// @Security BearerAuth
// @Param studentId query string false "Only events of this student"
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 400 {object} dto.ErrorResponse "Invalid student ID"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 403 {object} dto.ErrorResponse "Forbidden"
// @Router /ledger/events [get]
func (h *Handler) HandleConnection(c *gin.Context) {
	studentID := strings.TrimSpace(c.Query("studentId"))
	if len(studentID) > validation.StudentIDMaxLength {
		middleware.HandleAPIError(c, apperrors.NewValidationError([]apperrors.FieldError{
			{Field: "studentId", Message: fmt.Sprintf("must be at most %d characters", validation.StudentIDMaxLength)},
		}))
		return
	}
	subject := c.GetString(middleware.ContextSubject)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the handshake error
		h.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		subject:   subject,
		studentID: studentID,
		logger:    h.logger,
	}
	if !h.hub.join(client) {
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	h.logger.Info().
		Str("subject", subject).
		Str("studentID", studentID).
		Str("remoteAddr", conn.RemoteAddr().String()).
		Msg("WebSocket connection established")
}
