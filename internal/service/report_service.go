package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/readmodel"
	"github.com/spec-kit/warranty-portal/internal/repository"
)

// ReportService derives dashboards and exports from persisted state.
type ReportService struct {
	store    repository.Store
	exporter readmodel.CSVExporter
	logger   *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(store repository.Store, exporter readmodel.CSVExporter, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{store: store, exporter: exporter, logger: logger}
}

// Dashboard summarizes every ticket for staff and the actor's own tickets
// for customers.
func (s *ReportService) Dashboard(ctx context.Context, actor domain.Actor) (readmodel.Dashboard, error) {
	if err := requireActor(actor); err != nil {
		return readmodel.Dashboard{}, err
	}
	filter := repository.TicketFilter{}
	if !actor.IsStaff() {
		owner := actor.ID
		filter.OwnerID = &owner
	}
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return readmodel.Dashboard{}, mapRepoError(err, "ticket", "")
	}
	return readmodel.BuildDashboard(tickets), nil
}

// ExportCSV writes every ticket, joined with its owner and attachment links,
// to w. Staff only.
func (s *ReportService) ExportCSV(ctx context.Context, actor domain.Actor, w io.Writer) error {
	if err := requireStaff(actor, "export tickets"); err != nil {
		return err
	}
	tickets, err := s.store.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		return mapRepoError(err, "ticket", "")
	}

	ticketIDs := make([]string, 0, len(tickets))
	ownerIDs := make([]string, 0, len(tickets))
	seenOwner := make(map[string]struct{}, len(tickets))
	for _, ticket := range tickets {
		ticketIDs = append(ticketIDs, ticket.ID)
		if _, ok := seenOwner[ticket.OwnerID]; !ok {
			seenOwner[ticket.OwnerID] = struct{}{}
			ownerIDs = append(ownerIDs, ticket.OwnerID)
		}
	}

	owners, err := s.store.Profiles().ListByIDs(ctx, ownerIDs)
	if err != nil {
		return mapRepoError(err, "profile", "")
	}
	ownerByID := make(map[string]*domain.Profile, len(owners))
	for i := range owners {
		ownerByID[owners[i].ID] = &owners[i]
	}

	attachments, err := s.store.Attachments().ListByTickets(ctx, ticketIDs)
	if err != nil {
		return mapRepoError(err, "attachment", "")
	}
	byTicket := make(map[string][]domain.Attachment, len(tickets))
	for _, attachment := range attachments {
		byTicket[attachment.TicketID] = append(byTicket[attachment.TicketID], attachment)
	}

	rows := make([]readmodel.ExportRow, 0, len(tickets))
	for _, ticket := range tickets {
		rows = append(rows, readmodel.ExportRow{
			Ticket:      ticket,
			Owner:       ownerByID[ticket.OwnerID],
			Attachments: byTicket[ticket.ID],
		})
	}
	if err := s.exporter.Write(w, rows); err != nil {
		s.logger.Warn("csv export write failed", zap.Error(err))
		return err
	}
	s.logger.Info("tickets exported", zap.Int("rows", len(rows)), zap.String("by", actor.ID))
	return nil
}
