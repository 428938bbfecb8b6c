package service

import (
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/readmodel"
	"github.com/spec-kit/warranty-portal/internal/repository"
	"github.com/spec-kit/warranty-portal/internal/storage"
	"github.com/spec-kit/warranty-portal/internal/validation"
	"github.com/spec-kit/warranty-portal/internal/workflow"
)

// Config carries everything needed to build the service set.
type Config struct {
	Store          repository.Store
	Blobs          storage.BlobStore
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Logger         *zap.Logger
	Engine         *workflow.Engine
	Validator      *validation.TicketValidator
	Tokens         *auth.TokenManager
	BcryptCost     int
	BootstrapStaff []string
	MaxUploadBytes int64
	Exporter       readmodel.CSVExporter
}

// Services is the full set of application services sharing one store.
type Services struct {
	Profiles      *ProfileService
	Tickets       *TicketService
	Messages      *MessageService
	Attachments   *AttachmentService
	Notifications *NotificationService
	Reports       *ReportService
}

// New wires every service from cfg.
func New(cfg Config) *Services {
	notifications := NewNotificationService(NotificationDependencies{
		Store:      cfg.Store,
		Dispatcher: cfg.Dispatcher,
		Clock:      cfg.Clock,
		Logger:     cfg.Logger,
	})
	return &Services{
		Profiles: NewProfileService(ProfileDependencies{
			Store:          cfg.Store,
			Tokens:         cfg.Tokens,
			BcryptCost:     cfg.BcryptCost,
			BootstrapStaff: cfg.BootstrapStaff,
			Clock:          cfg.Clock,
			Logger:         cfg.Logger,
		}),
		Tickets: NewTicketService(TicketDependencies{
			Store:          cfg.Store,
			Engine:         cfg.Engine,
			Validator:      cfg.Validator,
			Notifier:       notifications,
			Blobs:          cfg.Blobs,
			Dispatcher:     cfg.Dispatcher,
			Clock:          cfg.Clock,
			Logger:         cfg.Logger,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		Messages: NewMessageService(MessageDependencies{
			Store:      cfg.Store,
			Engine:     cfg.Engine,
			Notifier:   notifications,
			Dispatcher: cfg.Dispatcher,
			Clock:      cfg.Clock,
			Logger:     cfg.Logger,
		}),
		Attachments: NewAttachmentService(AttachmentDependencies{
			Store:          cfg.Store,
			Blobs:          cfg.Blobs,
			Dispatcher:     cfg.Dispatcher,
			Clock:          cfg.Clock,
			Logger:         cfg.Logger,
			MaxUploadBytes: cfg.MaxUploadBytes,
		}),
		Notifications: notifications,
		Reports:       NewReportService(cfg.Store, cfg.Exporter, cfg.Logger),
	}
}
