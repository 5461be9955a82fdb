package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler exposes the hub over HTTP.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) Hub() *Hub { return h.hub }

// HandleWebSocket upgrades /ws/notifications?userId=..&rt=.. connections.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	rt := c.Query("rt")

	HandleWebSocket(h.hub, c.Writer, c.Request, userID, rt)
}

// GetStats reports live hub counters.
func (h *Handler) GetStats(c *gin.Context) {
	users := h.hub.ConnectedUsers()

	c.JSON(http.StatusOK, gin.H{
		"connections":     h.hub.GetConnectionCount(),
		"users":           len(users),
		"securityOnline":  h.hub.GetRoomConnections(RoomSecurity),
		"userConnections": users,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheck is a liveness probe for the websocket layer.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.hub.GetConnectionCount(),
	})
}

// RegisterRoutes mounts the websocket endpoints on the engine.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET(RouteWebSocket, h.HandleWebSocket)
	r.GET(RouteWebSocketStats, h.GetStats)
	r.GET(RouteWebSocketHealth, h.HealthCheck)
}
