package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	v1 "github.com/testbench/inspection-agent/api/v1"
)

// GetStreamStatus returns the driver event stream state.
// (GET /api/v1/stream/status)
func (h *Handler) GetStreamStatus(c *gin.Context) {
	c.JSON(http.StatusOK, v1.NewStreamStatus(h.streamSrv.Status()))
}

// ReconnectStream is the operator's reconnect action: a dead stream is
// never redialed without it.
// (POST /api/v1/stream/reconnect)
func (h *Handler) ReconnectStream(c *gin.Context) {
	if err := h.streamSrv.Reconnect(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, v1.NewStreamStatus(h.streamSrv.Status()))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// StreamEvents upgrades the connection and attaches it to the operator
// push hub. Blocks until the client disconnects.
// (GET /api/v1/events/ws)
func (h *Handler) StreamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Named("events_handler").Warnw("websocket upgrade failed", "error", err)
		return
	}

	h.hub.Register(conn)
}
