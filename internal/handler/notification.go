package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/service"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := service.NotificationFilter{
		Type:       c.Query("type"),
		UnreadOnly: c.Query("unread") == "true",
		Limit:      limit,
		Offset:     offset,
	}
	if v := c.Query("archived"); v != "" {
		archived := v == "true"
		filter.Archived = &archived
	}

	out, err := h.notifications.List(c.Request.Context(), userID, filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	count, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"unread": count})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	if err := h.notifications.MarkAsRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *NotificationHandler) MarkManyAsRead(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidRequest("invalid request body: %v", err))
		return
	}
	changed, err := h.notifications.MarkManyAsRead(c.Request.Context(), userID, body.IDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"updated": changed})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	changed, err := h.notifications.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"updated": changed})
}

func (h *NotificationHandler) Archive(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	if err := h.notifications.Archive(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, okQuery := uintQuery(c, "userId")
	if !okQuery {
		return
	}
	stats, err := h.notifications.Stats(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

// Announce fans an announcement out to an audience tag.
func (h *NotificationHandler) Announce(c *gin.Context) {
	var body struct {
		Audience string `json:"audience"`
		ActorID  uint   `json:"actorId"`
		Title    string `json:"title"`
		Message  string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidRequest("invalid request body: %v", err))
		return
	}
	count, results, err := h.notifications.Announce(c.Request.Context(), body.Audience, body.ActorID, service.NotificationInput{
		Title:   body.Title,
		Message: body.Message,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"persisted": count, "results": results})
}
