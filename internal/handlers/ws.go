package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/edu-project-api/internal/logger"
	"github.com/yukikurage/edu-project-api/internal/realtime"
	"go.uber.org/zap"
)

// WSHandler upgrades authenticated requests to the user's realtime room.
type WSHandler struct {
	hub    *realtime.Hub
	logger *logger.Logger
}

func NewWSHandler(hub *realtime.Hub, log *logger.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: log}
}

// Connect joins the current user's room. The upgrader writes its own error
// response when the handshake fails.
func (h *WSHandler) Connect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, userID); err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
}
