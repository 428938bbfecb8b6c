package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/service"
)

// NotificationsHandler serves the caller's inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

type notificationResponse struct {
	ID        string  `json:"id"`
	TicketID  *string `json:"ticket_id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Link      *string `json:"link"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at"`
}

func newNotificationResponse(n domain.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		TicketID:  n.TicketID,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(timestampLayout),
	}
}

// List handles GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	page, err := h.notifications.List(c.UserContext(), auth.ActorFromContext(c), limit)
	if err != nil {
		return err
	}
	items := make([]notificationResponse, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, newNotificationResponse(n))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"unread": page.Unread},
	})
}

// MarkRead handles POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	n, err := h.notifications.MarkRead(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": newNotificationResponse(*n)})
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	count, err := h.notifications.MarkAllRead(c.UserContext(), auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": count}})
}
