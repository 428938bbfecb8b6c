package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/api/dto"
	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/service"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// TicketsHandler serves the ticket endpoints shared by customers and staff.
type TicketsHandler struct {
	tickets        *service.TicketService
	downloadPrefix string
}

// NewTicketsHandler constructs handler. downloadPrefix is prepended to
// attachment IDs to build download URLs.
func NewTicketsHandler(tickets *service.TicketService, downloadPrefix string) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, downloadPrefix: downloadPrefix}
}

// Create handles POST /tickets as multipart/form-data with one or more files.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	form, err := multipartForm(c)
	if err != nil {
		return err
	}
	manufactured, err := parseDate("manufacturing_date", formValue(form, "manufacturing_date"))
	if err != nil {
		return err
	}
	uploads, closeAll, err := openUploads(form, filesField)
	if err != nil {
		return err
	}
	defer closeAll()

	actor := auth.ActorFromContext(c)
	created, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		OwnerID: strings.TrimSpace(formValue(form, "owner_id")),
		Fields: domain.TicketFields{
			ProductName:       formValue(form, "product_name"),
			Brand:             formValue(form, "brand"),
			Model:             formValue(form, "model"),
			SKU:               formValue(form, "sku"),
			IssueDescription:  formValue(form, "issue_description"),
			BatchNumber:       formValue(form, "batch_number"),
			ManufacturingDate: manufactured,
		},
	}, uploads)
	if err != nil {
		return err
	}

	failed := created.Failed
	if failed == nil {
		failed = []service.UploadFailure{}
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CreateTicketResponse{
		Ticket:      dto.NewTicketResponse(created.Ticket, actor.Role),
		Attachments: dto.NewAttachmentList(created.Attachments, h.downloadPrefix),
		Failed:      failed,
	}})
}

// List handles GET /tickets. Customers see their own tickets; staff see all
// of them, or one customer's with owner_id.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	filter, err := listFilter(c)
	if err != nil {
		return err
	}
	actor := auth.ActorFromContext(c)

	var tickets []domain.Ticket
	ownerID := strings.TrimSpace(c.Query("owner_id"))
	if actor.IsStaff() && ownerID == "" {
		tickets, err = h.tickets.ListAllTickets(c.UserContext(), actor, filter)
	} else {
		tickets, err = h.tickets.ListTicketsForOwner(c.UserContext(), actor, ownerID, filter)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketList(tickets, actor.Role),
		"meta": fiber.Map{"limit": filter.Limit, "offset": filter.Offset, "count": len(tickets)},
	})
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, viewerRole(c))})
}

// Update handles PATCH /admin/tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	patch := service.TicketFieldsPatch{
		ProductName:      req.ProductName,
		Brand:            req.Brand,
		Model:            req.Model,
		SKU:              req.SKU,
		IssueDescription: req.IssueDescription,
		BatchNumber:      req.BatchNumber,
	}
	if req.ManufacturingDate != nil {
		date, err := parseDate("manufacturing_date", *req.ManufacturingDate)
		if err != nil {
			return err
		}
		patch.ManufacturingDate = date
		patch.ClearManufacturingDate = date == nil
	}

	ticket, err := h.tickets.UpdateTicketFields(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, viewerRole(c))})
}

// SetStatus handles POST /admin/tickets/:id/status.
func (h *TicketsHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.SetStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	change, err := h.tickets.SetExplicitStatus(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.Status, req.Solution)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatusChangeResponse{
		Ticket: dto.NewTicketResponse(change.Ticket, viewerRole(c)),
		From:   change.Transition.From,
		To:     change.Transition.To,
		Closed: change.Transition.Closed,
	}})
}

// MarkRead handles POST /tickets/:id/read.
func (h *TicketsHandler) MarkRead(c *fiber.Ctx) error {
	ticket, err := h.tickets.MarkTicketRead(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, viewerRole(c))})
}

// History handles GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.tickets.ListHistory(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryList(entries)})
}

func listFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	limit, offset, err := pagination(c)
	if err != nil {
		return service.TicketListFilter{}, err
	}
	filter := service.TicketListFilter{
		Brand:      queryString(c, "brand"),
		SearchTerm: queryString(c, "q"),
		Limit:      limit,
		Offset:     offset,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return service.TicketListFilter{}, apperrors.NewValidationError("invalid status filter", map[string]any{"status": string(status)})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if filter.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		return service.TicketListFilter{}, err
	}
	if filter.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		return service.TicketListFilter{}, err
	}
	return filter, nil
}
