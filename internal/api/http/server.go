package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/api/http/handlers"
	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/observability"
	"github.com/spec-kit/warranty-portal/internal/service"
)

// multipart overhead allowed on top of the file payload
const formOverheadBytes = 1 << 20

// maxFilesPerRequest bounds the body limit derived from the per-file cap.
const maxFilesPerRequest = 10

// Options configures NewApp.
type Options struct {
	ServiceName    string
	Version        string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Dependencies   []handlers.Dependency

	Profiles      *service.ProfileService
	Tickets       *service.TicketService
	Messages      *service.MessageService
	Attachments   *service.AttachmentService
	Notifications *service.NotificationService
	Reports       *service.ReportService
}

// NewApp builds the fiber application with middlewares and routes.
func NewApp(opts Options) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = service.DefaultMaxUploadBytes
	}

	app := fiber.New(fiber.Config{
		AppName:               opts.ServiceName,
		BodyLimit:             int(maxUpload)*maxFilesPerRequest + formOverheadBytes,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, logger, opts.Metrics, opts.RequestTimeout)

	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(opts.ServiceName, opts.Version, opts.Metrics, opts.Dependencies...),
		Profiles:       handlers.NewProfilesHandler(opts.Profiles),
		Tickets:        handlers.NewTicketsHandler(opts.Tickets, DownloadPrefix),
		Messages:       handlers.NewMessagesHandler(opts.Messages),
		Attachments:    handlers.NewAttachmentsHandler(opts.Attachments, DownloadPrefix),
		Notifications:  handlers.NewNotificationsHandler(opts.Notifications),
		Reports:        handlers.NewReportsHandler(opts.Reports),
		AuthMiddleware: auth.NewAuthMiddleware(opts.Profiles.TokenManager(), opts.Profiles),
	})
	return app
}
