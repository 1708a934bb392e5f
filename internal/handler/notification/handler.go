package notification

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/handler"
	"github.com/jwalitptl/jobboard-api/internal/middleware"
	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/pkg/auth"
)

type Servicer interface {
	CreateBulk(ctx context.Context, recipients []string, in model.NotificationInput) ([]*model.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, opts model.ListOptions) (*model.NotificationPage, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (*model.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Remove(ctx context.Context, id, userID uuid.UUID) error
}

type Handler struct {
	service Servicer
}

func NewHandler(service Servicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the notification endpoints on r, which must already
// run authz.Authenticate. Every route except the broadcast acts on the
// caller's own inbox.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authz *middleware.AuthMiddleware) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.POST("/mark-all-read", h.MarkAllRead)
		notifications.PATCH("/:id/read", h.MarkRead)
		notifications.DELETE("/:id", h.DeleteNotification)
		notifications.POST("", authz.RequireRole(auth.RoleAdmin), h.Broadcast)
	}
}

type broadcastRequest struct {
	Recipients []string `json:"recipients" binding:"required,min=1,max=1000"`
	model.NotificationInput
}

func (h *Handler) ListNotifications(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	opts, err := handler.ListOptions(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	page, err := h.service.ListForUser(c.Request.Context(), identity.UserID, opts)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), identity.UserID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, count)
}

func (h *Handler) MarkRead(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), id, identity.UserID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	updated, err := h.service.MarkAllRead(c.Request.Context(), identity.UserID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	identity, err := handler.Identity(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		handler.Fail(c, err)
		return
	}

	if err := h.service.Remove(c.Request.Context(), id, identity.UserID); err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

// Broadcast sends one system notification to each listed recipient.
func (h *Handler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Fail(c, middleware.BindError(err))
		return
	}

	created, err := h.service.CreateBulk(c.Request.Context(), req.Recipients, req.NotificationInput)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": len(created)})
}
