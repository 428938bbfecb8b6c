package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/readmodel"
	"github.com/spec-kit/warranty-portal/internal/repository/memory"
	"github.com/spec-kit/warranty-portal/internal/storage"
	"github.com/spec-kit/warranty-portal/internal/validation"
	"github.com/spec-kit/warranty-portal/internal/workflow"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

var fixtureStart = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx           context.Context
	store         *memory.Store
	blobs         *storage.MemoryStore
	clock         *clock.FakeClock
	recorder      *events.Recorder
	tickets       *TicketService
	messages      *MessageService
	attachments   *AttachmentService
	notifications *NotificationService
	profiles      *ProfileService
	reports       *ReportService

	customer domain.Actor
	other    domain.Actor
	staff    domain.Actor
	staff2   domain.Actor
}

func newFixture(t *testing.T, policy workflow.Policy) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.New(),
		blobs:    storage.NewMemoryStore(),
		clock:    clock.Fake(fixtureStart),
		recorder: &events.Recorder{},
	}
	dispatcher := events.NewInMemoryDispatcher(nil)
	dispatcher.SubscribeAll(f.recorder.Handle)

	engine := workflow.NewEngine(policy)
	f.notifications = NewNotificationService(NotificationDependencies{
		Store: f.store, Dispatcher: dispatcher, Clock: f.clock,
	})
	f.tickets = NewTicketService(TicketDependencies{
		Store:      f.store,
		Engine:     engine,
		Validator:  validation.NewTicketValidator(domain.DefaultBrandPolicy(), validation.DefaultMinIssueLength),
		Notifier:   f.notifications,
		Blobs:      f.blobs,
		Dispatcher: dispatcher,
		Clock:      f.clock,
	})
	f.messages = NewMessageService(MessageDependencies{
		Store: f.store, Engine: engine, Notifier: f.notifications, Dispatcher: dispatcher, Clock: f.clock,
	})
	f.attachments = NewAttachmentService(AttachmentDependencies{
		Store: f.store, Blobs: f.blobs, Dispatcher: dispatcher, Clock: f.clock,
	})
	f.profiles = NewProfileService(ProfileDependencies{
		Store:      f.store,
		Tokens:     auth.NewTokenManager("test-secret", 15),
		BcryptCost: 4,
		Clock:      f.clock,
	})
	f.reports = NewReportService(f.store, readmodel.CSVExporter{PublicBaseURL: "https://files.example.com"}, nil)

	f.customer = f.seedProfile(t, "cust-1", "Ana Souza", domain.RoleCustomer)
	f.other = f.seedProfile(t, "cust-2", "Bruno Lima", domain.RoleCustomer)
	f.staff = f.seedProfile(t, "staff-1", "Carla Staff", domain.RoleStaff)
	f.staff2 = f.seedProfile(t, "staff-2", "Diego Staff", domain.RoleStaff)
	return f
}

func (f *fixture) seedProfile(t *testing.T, id, name string, role domain.Role) domain.Actor {
	t.Helper()
	profile := &domain.Profile{
		ID:        id,
		FullName:  name,
		Email:     strings.ReplaceAll(strings.ToLower(name), " ", ".") + "@example.com",
		Document:  "DOC-" + id,
		Role:      role,
		CreatedAt: fixtureStart,
		UpdatedAt: fixtureStart,
	}
	if err := f.store.Profiles().Create(f.ctx, profile); err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
	return profile.Actor()
}

func lookFields() domain.TicketFields {
	return domain.TicketFields{
		ProductName:      "Helmet X",
		Brand:            "Look",
		Model:            "X",
		IssueDescription: "20+ char description here",
	}
}

func photo(name string) Upload {
	return Upload{FileName: name, ContentType: "image/jpeg", Content: strings.NewReader("jpeg bytes for " + name)}
}

func (f *fixture) openTicket(t *testing.T, actor domain.Actor) *domain.Ticket {
	t.Helper()
	created, err := f.tickets.CreateTicket(f.ctx, actor, TicketCreateInput{Fields: lookFields()}, []Upload{photo("front.jpg")})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return created.Ticket
}

func (f *fixture) unread(t *testing.T, actor domain.Actor) int {
	t.Helper()
	page, err := f.notifications.List(f.ctx, actor, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return page.Unread
}

func requireKind(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := apperrors.KindOf(err); got != code {
		t.Fatalf("expected %s error, got %s (%v)", code, got, err)
	}
}

func solutionPtr(s domain.Solution) *domain.Solution { return &s }

func strPtr(s string) *string { return &s }
