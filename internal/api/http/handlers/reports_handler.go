package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/service"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000000Z07:00"
	exportFileName  = "tickets.csv"
)

// ReportsHandler serves the dashboard and the CSV export.
type ReportsHandler struct {
	reports *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reports *service.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// Dashboard handles GET /dashboard. Customers get figures over their own tickets.
func (h *ReportsHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.reports.Dashboard(c.UserContext(), auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dashboard})
}

// Export handles GET /admin/tickets/export.csv.
func (h *ReportsHandler) Export(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.reports.ExportCSV(c.UserContext(), auth.ActorFromContext(c), &buf); err != nil {
		return err
	}
	c.Attachment(exportFileName)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}
