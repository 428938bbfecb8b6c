package service

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/workflow"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

func TestWarrantyClaimScenario(t *testing.T) {
	f := newFixture(t, workflow.Policy{})

	created, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: lookFields()}, []Upload{photo("helmet.jpg")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ticket := created.Ticket
	if ticket.Status != domain.TicketStatusNew || ticket.TicketNumber != 1 {
		t.Fatalf("unexpected new ticket: status=%s number=%d", ticket.Status, ticket.TicketNumber)
	}
	if len(created.Attachments) != 1 || len(created.Failed) != 0 {
		t.Fatalf("expected one stored attachment, got %d stored %d failed", len(created.Attachments), len(created.Failed))
	}
	if got := f.unread(t, f.staff); got != 1 {
		t.Fatalf("staff should be told about the new ticket, unread=%d", got)
	}

	f.clock.Advance(time.Minute)
	posted, err := f.messages.PostMessage(f.ctx, f.staff, ticket.ID, "Please send a photo of the label.")
	if err != nil {
		t.Fatalf("staff message: %v", err)
	}
	if posted.Ticket.Status != domain.TicketStatusAwaitingResponse {
		t.Fatalf("staff message should await the customer, got %s", posted.Ticket.Status)
	}
	if got := f.unread(t, f.customer); got != 1 {
		t.Fatalf("customer should have one notification, got %d", got)
	}

	f.clock.Advance(time.Minute)
	posted, err = f.messages.PostMessage(f.ctx, f.customer, ticket.ID, "Label photo attached.")
	if err != nil {
		t.Fatalf("customer message: %v", err)
	}
	if posted.Ticket.Status != domain.TicketStatusInReview {
		t.Fatalf("customer message should return to review, got %s", posted.Ticket.Status)
	}
	if f.unread(t, f.staff) != 2 || f.unread(t, f.staff2) != 2 {
		t.Fatalf("every staff member should be notified of the reply")
	}

	f.clock.Advance(time.Minute)
	change, err := f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusApproved, solutionPtr(domain.SolutionReplacement))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	approved := change.Ticket
	if approved.Status != domain.TicketStatusApproved || approved.ClosedAt == nil {
		t.Fatalf("approval should close the ticket: %+v", approved)
	}
	if approved.Solution == nil || *approved.Solution != domain.SolutionReplacement {
		t.Fatalf("unexpected solution %v", approved.Solution)
	}
	closedAt := *approved.ClosedAt

	f.clock.Advance(time.Minute)
	change, err = f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusApproved, solutionPtr(domain.SolutionRefund))
	if err != nil {
		t.Fatalf("overwrite solution: %v", err)
	}
	if *change.Ticket.Solution != domain.SolutionRefund {
		t.Fatalf("solution should be overwritten, got %s", *change.Ticket.Solution)
	}
	if !change.Ticket.ClosedAt.Equal(closedAt) {
		t.Fatalf("closed_at moved from %v to %v", closedAt, *change.Ticket.ClosedAt)
	}
	if change.Transition.StatusChanged() || !change.Transition.SolutionChanged() {
		t.Fatalf("unexpected transition %+v", change.Transition)
	}
	if got := f.unread(t, f.customer); got != 3 {
		t.Fatalf("customer should have three notifications, got %d", got)
	}

	if n := len(f.recorder.OfType(events.EventStatusChanged)); n != 4 {
		t.Fatalf("expected 4 status events, got %d", n)
	}
}

func TestCreateTicketBrandRules(t *testing.T) {
	f := newFixture(t, workflow.Policy{})

	met := lookFields()
	met.Brand = "MET"
	_, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: met}, []Upload{photo("a.jpg")})
	requireKind(t, err, apperrors.CodeValidation)
	details := apperrors.ToDomainError(err).Details
	if _, ok := details["batch_number"]; !ok {
		t.Fatalf("expected batch_number detail, got %v", details)
	}

	met.Brand = "  met "
	_, err = f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: met}, []Upload{photo("a.jpg")})
	requireKind(t, err, apperrors.CodeValidation)

	made := time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)
	met.BatchNumber = "B-2023-01"
	met.ManufacturingDate = &made
	if _, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: met}, []Upload{photo("a.jpg")}); err != nil {
		t.Fatalf("MET with batch and date should pass: %v", err)
	}

	if _, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: lookFields()}, []Upload{photo("a.jpg")}); err != nil {
		t.Fatalf("Look without batch should pass: %v", err)
	}
	if f.blobs.Len() != 2 {
		t.Fatalf("rejected tickets must not leave blobs, have %d", f.blobs.Len())
	}
}

func TestCreateTicketRejectsBadInput(t *testing.T) {
	f := newFixture(t, workflow.Policy{})

	short := lookFields()
	short.IssueDescription = "too short"
	_, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: short}, []Upload{photo("a.jpg")})
	requireKind(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: lookFields()}, nil)
	requireKind(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{OwnerID: f.other.ID, Fields: lookFields()}, []Upload{photo("a.jpg")})
	requireKind(t, err, apperrors.CodeForbidden)

	_, err = f.tickets.CreateTicket(f.ctx, f.staff, TicketCreateInput{Fields: lookFields()}, []Upload{photo("a.jpg")})
	requireKind(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(f.ctx, f.staff, TicketCreateInput{OwnerID: f.staff2.ID, Fields: lookFields()}, []Upload{photo("a.jpg")})
	requireKind(t, err, apperrors.CodeValidation)

	_, err = f.tickets.CreateTicket(f.ctx, domain.Actor{}, TicketCreateInput{Fields: lookFields()}, []Upload{photo("a.jpg")})
	requireKind(t, err, apperrors.CodeUnauthorized)
}

func TestStaffOpensTicketForCustomer(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	created, err := f.tickets.CreateTicket(f.ctx, f.staff, TicketCreateInput{OwnerID: f.customer.ID, Fields: lookFields()}, []Upload{photo("a.jpg")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Ticket.OwnerID != f.customer.ID || !created.Ticket.CustomerUnread || created.Ticket.StaffUnread {
		t.Fatalf("unexpected ticket %+v", created.Ticket)
	}
	if !strings.HasPrefix(created.Attachments[0].Path, StaffUploadScope+"/"+created.Ticket.ID+"/") {
		t.Fatalf("staff uploads belong to the admin scope, got %s", created.Attachments[0].Path)
	}
	if got := f.unread(t, f.customer); got != 1 {
		t.Fatalf("owner should be notified, got %d", got)
	}
}

func TestCreateTicketUploadFailures(t *testing.T) {
	f := newFixture(t, workflow.Policy{})

	f.blobs.FailPuts(errors.New("bucket offline"))
	_, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: lookFields()}, []Upload{photo("a.jpg"), photo("b.jpg")})
	requireKind(t, err, apperrors.CodeDependency)
	tickets, err := f.tickets.ListAllTickets(f.ctx, f.staff, TicketListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 0 {
		t.Fatalf("no ticket may persist when every upload fails, got %d", len(tickets))
	}
	if len(f.recorder.Events()) != 0 {
		t.Fatalf("failed creation must not publish events")
	}
	f.blobs.FailPuts(nil)

	empty := Upload{FileName: "empty.jpg", ContentType: "image/jpeg", Content: strings.NewReader("")}
	_, err = f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: lookFields()}, []Upload{empty})
	requireKind(t, err, apperrors.CodeValidation)

	f.blobs.FailPutsNamed(".png", errors.New("png bucket offline"))
	created, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: lookFields()}, []Upload{
		photo("front.jpg"),
		{FileName: "back.png", ContentType: "image/png", Content: strings.NewReader("png bytes")},
	})
	if err != nil {
		t.Fatalf("partial failure should still create: %v", err)
	}
	if len(created.Attachments) != 1 || len(created.Failed) != 1 {
		t.Fatalf("expected 1 stored and 1 failed, got %d/%d", len(created.Attachments), len(created.Failed))
	}
	failure := created.Failed[0]
	if failure.Index != 1 || failure.FileName != "back.png" || failure.Code != apperrors.CodeDependency {
		t.Fatalf("unexpected failure %+v", failure)
	}
	listed, err := f.attachments.ListAttachments(f.ctx, f.customer, created.Ticket.ID)
	if err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected 1 attachment row, got %d", len(listed))
	}
}

func TestConcurrentCreationAssignsDistinctNumbers(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	const n = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := f.tickets.CreateTicket(f.ctx, f.customer, TicketCreateInput{Fields: lookFields()}, []Upload{photo("a.jpg")})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			mu.Lock()
			numbers = append(numbers, created.Ticket.TicketNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	if len(numbers) != n {
		t.Fatalf("expected %d tickets, got %d", n, len(numbers))
	}
	for i, number := range numbers {
		if number != int64(i+1) {
			t.Fatalf("ticket numbers not a dense increasing sequence: %v", numbers)
		}
	}
}

func TestTicketAuthorization(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	ticket := f.openTicket(t, f.customer)

	_, err := f.tickets.GetTicket(f.ctx, f.other, ticket.ID)
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.messages.PostMessage(f.ctx, f.other, ticket.ID, "hello")
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.messages.ListMessages(f.ctx, f.other, ticket.ID)
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.attachments.ListAttachments(f.ctx, f.other, ticket.ID)
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.attachments.AddAttachments(f.ctx, f.other, ticket.ID, []Upload{photo("x.jpg")})
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.ListTicketsForOwner(f.ctx, f.other, f.customer.ID, TicketListFilter{})
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.ListAllTickets(f.ctx, f.customer, TicketListFilter{})
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.SetExplicitStatus(f.ctx, f.customer, ticket.ID, domain.TicketStatusApproved, nil)
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.UpdateTicketFields(f.ctx, f.customer, ticket.ID, TicketFieldsPatch{Model: strPtr("Y")})
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.tickets.GetTicket(f.ctx, f.customer, "missing")
	requireKind(t, err, apperrors.CodeNotFound)

	if _, err := f.tickets.GetTicket(f.ctx, f.staff, ticket.ID); err != nil {
		t.Fatalf("staff should read any ticket: %v", err)
	}
	own, err := f.tickets.ListTicketsForOwner(f.ctx, f.customer, "", TicketListFilter{})
	if err != nil || len(own) != 1 {
		t.Fatalf("owner listing: %v (%d)", err, len(own))
	}
}

func TestExplicitStatusRules(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	ticket := f.openTicket(t, f.customer)

	_, err := f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusInReview, solutionPtr(domain.SolutionRepair))
	requireKind(t, err, apperrors.CodeValidation)
	_, err = f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatus("lost"), nil)
	requireKind(t, err, apperrors.CodeValidation)

	change, err := f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusDenied, solutionPtr(domain.SolutionDeniedJustified))
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	closedAt := *change.Ticket.ClosedAt

	f.clock.Advance(time.Hour)
	change, err = f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusInReview, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if change.Ticket.Solution != nil {
		t.Fatalf("leaving the terminal set clears the solution")
	}
	if change.Ticket.ClosedAt == nil || !change.Ticket.ClosedAt.Equal(closedAt) {
		t.Fatalf("closed_at must survive reopening")
	}

	f.clock.Advance(time.Hour)
	change, err = f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusCompleted, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !change.Ticket.ClosedAt.Equal(closedAt) || change.Transition.Closed {
		t.Fatalf("closed_at is set only once")
	}

	before := f.unread(t, f.customer)
	change, err = f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusCompleted, nil)
	if err != nil {
		t.Fatalf("no-op status: %v", err)
	}
	if change.Transition.Changed() || f.unread(t, f.customer) != before {
		t.Fatalf("a no-op write must not notify")
	}
}

func TestConflictRetry(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	ticket := f.openTicket(t, f.customer)

	f.store.InjectStaleVersion(1)
	calls := f.store.TicketUpdateCalls()
	change, err := f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusAwaitingShipment, nil)
	if err != nil {
		t.Fatalf("one stale write should be retried: %v", err)
	}
	if change.Ticket.Status != domain.TicketStatusAwaitingShipment {
		t.Fatalf("unexpected status %s", change.Ticket.Status)
	}
	if got := f.store.TicketUpdateCalls() - calls; got != 2 {
		t.Fatalf("expected 2 update attempts, got %d", got)
	}

	f.store.InjectStaleVersion(2)
	_, err = f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusApproved, solutionPtr(domain.SolutionCredit))
	requireKind(t, err, apperrors.CodeConflict)

	stored, err := f.tickets.GetTicket(f.ctx, f.staff, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.TicketStatusAwaitingShipment || stored.ClosedAt != nil {
		t.Fatalf("a lost race must leave the ticket untouched: %+v", stored)
	}
}

func TestUpdateTicketFields(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	ticket := f.openTicket(t, f.customer)

	_, err := f.tickets.UpdateTicketFields(f.ctx, f.staff, ticket.ID, TicketFieldsPatch{Brand: strPtr("Hutchinson")})
	requireKind(t, err, apperrors.CodeValidation)

	made := time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC)
	updated, err := f.tickets.UpdateTicketFields(f.ctx, f.staff, ticket.ID, TicketFieldsPatch{
		Brand:             strPtr("Hutchinson"),
		BatchNumber:       strPtr("HT-889"),
		ManufacturingDate: &made,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Brand != "Hutchinson" || updated.BatchNumber != "HT-889" || updated.Status != domain.TicketStatusNew {
		t.Fatalf("unexpected ticket %+v", updated)
	}
	evts := f.recorder.OfType(events.EventTicketUpdated)
	if len(evts) != 1 {
		t.Fatalf("expected one update event, got %d", len(evts))
	}
	fields := evts[0].Payload.(events.TicketUpdatedPayload).Fields
	if strings.Join(fields, ",") != "brand,batch_number,manufacturing_date" {
		t.Fatalf("unexpected changed fields %v", fields)
	}

	if _, err := f.tickets.UpdateTicketFields(f.ctx, f.staff, ticket.ID, TicketFieldsPatch{Brand: strPtr(" Hutchinson ")}); err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if len(f.recorder.OfType(events.EventTicketUpdated)) != 1 {
		t.Fatalf("a no-op edit must not emit events")
	}

	staffHistory, err := f.tickets.ListHistory(f.ctx, f.staff, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	customerHistory, err := f.tickets.ListHistory(f.ctx, f.customer, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(staffHistory) != 2 || len(customerHistory) != 1 {
		t.Fatalf("expected created+fields for staff and created for customer, got %d/%d", len(staffHistory), len(customerHistory))
	}
	if customerHistory[0].ChangeType != domain.ChangeTypeCreated {
		t.Fatalf("unexpected customer entry %s", customerHistory[0].ChangeType)
	}
}

func TestMarkTicketRead(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	ticket := f.openTicket(t, f.customer)
	if !ticket.StaffUnread {
		t.Fatalf("a customer's new ticket is unread for staff")
	}

	f.clock.Advance(time.Hour)
	read, err := f.tickets.MarkTicketRead(f.ctx, f.staff, ticket.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.StaffUnread {
		t.Fatalf("staff flag should be cleared")
	}
	if !read.UpdatedAt.Equal(ticket.UpdatedAt) {
		t.Fatalf("marking read must not bump updated_at")
	}
}

func TestListTicketsFilters(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	first := f.openTicket(t, f.customer)
	f.clock.Advance(time.Minute)
	f.openTicket(t, f.other)
	if _, err := f.tickets.SetExplicitStatus(f.ctx, f.staff, first.ID, domain.TicketStatusInReview, nil); err != nil {
		t.Fatalf("status: %v", err)
	}

	all, err := f.tickets.ListAllTickets(f.ctx, f.staff, TicketListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].OwnerID != f.other.ID {
		t.Fatalf("expected newest first, got %d tickets", len(all))
	}

	reviewing, err := f.tickets.ListAllTickets(f.ctx, f.staff, TicketListFilter{Statuses: []domain.TicketStatus{domain.TicketStatusInReview}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviewing) != 1 || reviewing[0].ID != first.ID {
		t.Fatalf("status filter returned %d tickets", len(reviewing))
	}

	_, err = f.tickets.ListAllTickets(f.ctx, f.staff, TicketListFilter{Statuses: []domain.TicketStatus{"archived"}})
	requireKind(t, err, apperrors.CodeValidation)
}

func TestHistoryKeepsTransitionOrder(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	ticket := f.openTicket(t, f.customer)

	if _, err := f.tickets.SetExplicitStatus(f.ctx, f.staff, ticket.ID, domain.TicketStatusApproved, solutionPtr(domain.SolutionReplacement)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	history, err := f.tickets.ListHistory(f.ctx, f.customer, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []domain.TicketChangeType{domain.ChangeTypeCreated, domain.ChangeTypeStatus, domain.ChangeTypeSolution}
	if len(history) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(history))
	}
	for i, entry := range history {
		if entry.ChangeType != want[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, want[i], entry.ChangeType)
		}
	}
	if !history[1].CreatedAt.Equal(history[2].CreatedAt) {
		t.Fatalf("status and solution entries of one transition share a timestamp")
	}
}
