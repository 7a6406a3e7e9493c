package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/carepulse/backend/internal/middleware"
	"github.com/carepulse/backend/internal/notify"
	"github.com/carepulse/backend/internal/realtime"
	"github.com/carepulse/backend/internal/services"
	appErrors "github.com/carepulse/backend/pkg/errors"
	"github.com/carepulse/backend/pkg/logger"
	"github.com/carepulse/backend/pkg/response"
)

// NotificationHandler exposes the notification system over HTTP and the
// realtime event stream over WebSocket.
type NotificationHandler struct {
	system  *notify.System
	hub     *realtime.Hub
	history *services.HistoryService
	log     *zap.Logger
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(system *notify.System, hub *realtime.Hub, history *services.HistoryService) *NotificationHandler {
	return &NotificationHandler{
		system:  system,
		hub:     hub,
		history: history,
		log:     logger.WithModule("handlers.notifications"),
	}
}

// CreateNotificationRequest is the payload accepted by Create.
type CreateNotificationRequest struct {
	Type          string          `json:"type" validate:"required"`
	Title         string          `json:"title" validate:"max=200"`
	Message       string          `json:"message" validate:"max=2000"`
	RecipientID   string          `json:"recipientId"`
	RecipientRole string          `json:"recipientRole"`
	DepartmentID  string          `json:"departmentId"`
	Data          map[string]any  `json:"data"`
	ActionURL     string          `json:"actionUrl"`
	Actions       []notify.Action `json:"actions"`
	ExpiresInSec  int             `json:"expiresInSeconds" validate:"min=0"`
}

// Create accepts a producer-supplied notification, classifies it and fans it
// out to subscribers and connected consoles.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req CreateNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	id, err := h.system.CreateNotification(notify.CreateParams{
		Type:          notify.Type(req.Type),
		Title:         req.Title,
		Message:       req.Message,
		RecipientID:   req.RecipientID,
		RecipientRole: req.RecipientRole,
		DepartmentID:  req.DepartmentID,
		Data:          req.Data,
		ActionURL:     req.ActionURL,
		Actions:       req.Actions,
		ExpiresIn:     time.Duration(req.ExpiresInSec) * time.Second,
	})
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"id": id})
}

// List returns the caller's visible notifications ordered by priority then
// recency. Supports ?category= and ?unread_only= filters.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	category := notify.Category(c.Query("category"))
	unreadOnly := parseBoolQuery(c, "unread_only")

	notifications := h.system.GetNotifications(userID, category, unreadOnly)
	response.Success(c, http.StatusOK, gin.H{
		"notifications": notifications,
		"total":         len(notifications),
	})
}

// UnreadCount returns the caller's unread notification count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	category := notify.Category(c.Query("category"))

	count := h.system.GetUnreadCount(userID, category)
	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// MarkRead stamps the notification as read. Re-marking an already-read or
// unknown id succeeds without effect.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("notification id is required"))
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	h.system.MarkAsRead(id, userID)

	if h.history != nil {
		if err := h.history.MarkRead(c.Request.Context(), id, time.Now()); err != nil {
			h.log.Warn("failed to mark durable row read",
				zap.String("notification_id", id),
				zap.Error(err),
			)
		}
	}

	response.Success(c, http.StatusOK, gin.H{"id": id, "read": true})
}

// Delete removes the notification. Unknown ids succeed without effect.
func (h *NotificationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("notification id is required"))
		return
	}

	h.system.DeleteNotification(id)
	h.hub.Broadcast(notify.BroadcastKey, realtime.Event{
		Event:          "notification_deleted",
		NotificationID: id,
	})

	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// ClearAll removes every notification visible to the caller and tells
// connected consoles about each deletion, matching single-delete behaviour.
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	cleared := h.system.ClearAllNotifications(userID)
	for _, id := range cleared {
		h.hub.Broadcast(notify.BroadcastKey, realtime.Event{
			Event:          "notification_deleted",
			NotificationID: id,
		})
	}
	response.Success(c, http.StatusOK, gin.H{"cleared": len(cleared)})
}

// History returns the caller's durable notification history, newest first.
// Supports ?limit=.
func (h *NotificationHandler) History(c *gin.Context) {
	if h.history == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	limit := parseIntQuery(c, "limit", 50)

	rows, err := h.history.ListRecent(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"notifications": rows,
		"total":         len(rows),
	})
}

// Stream upgrades to a WebSocket and streams notification and alert events
// addressed to the caller's user id, role, or broadcast.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	role := c.GetString(middleware.CtxRoleKey)

	h.log.Debug("console connected",
		zap.String("user_id", userID),
		zap.String("role", role),
	)
	h.hub.Serve(userID, role, c.Writer, c.Request)
}
