package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/api/dto"
	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/service"
)

// MessagesHandler serves a ticket's message thread.
type MessagesHandler struct {
	messages *service.MessageService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(messages *service.MessageService) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

// Post handles POST /tickets/:id/messages.
func (h *MessagesHandler) Post(c *fiber.Ctx) error {
	var req dto.CreateMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	actor := auth.ActorFromContext(c)
	posted, err := h.messages.PostMessage(c.UserContext(), actor, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.PostMessageResponse{
		Message: dto.NewMessageResponse(posted.Message),
		Ticket:  dto.NewTicketResponse(posted.Ticket, actor.Role),
	}})
}

// List handles GET /tickets/:id/messages.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
	messages, err := h.messages.ListMessages(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	out := make([]dto.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, dto.NewMessageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}
