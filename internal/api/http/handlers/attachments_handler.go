package handlers

import (
	"mime"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/api/dto"
	"github.com/spec-kit/warranty-portal/internal/auth"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/service"
)

// AttachmentsHandler serves ticket evidence files.
type AttachmentsHandler struct {
	attachments    *service.AttachmentService
	downloadPrefix string
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(attachments *service.AttachmentService, downloadPrefix string) *AttachmentsHandler {
	return &AttachmentsHandler{attachments: attachments, downloadPrefix: downloadPrefix}
}

// Upload handles POST /tickets/:id/attachments with multipart files.
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	form, err := multipartForm(c)
	if err != nil {
		return err
	}
	uploads, closeAll, err := openUploads(form, filesField)
	if err != nil {
		return err
	}
	defer closeAll()

	batch, err := h.attachments.AddAttachments(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), uploads)
	if err != nil {
		return err
	}
	failed := batch.Failed
	if failed == nil {
		failed = []service.UploadFailure{}
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AttachmentBatchResponse{
		Attachments: dto.NewAttachmentList(batch.Attachments, h.downloadPrefix),
		Failed:      failed,
	}})
}

// AddReference handles POST /tickets/:id/attachments/ref for blobs already in the store.
func (h *AttachmentsHandler) AddReference(c *fiber.Ctx) error {
	var req dto.AttachmentRefRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	attachment, err := h.attachments.AddAttachment(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), service.AttachmentRef{
		Path:      req.Path,
		FileName:  req.FileName,
		MimeType:  req.MimeType,
		SizeBytes: req.SizeBytes,
	})
	if err != nil {
		return err
	}
	out := dto.NewAttachmentList([]domain.Attachment{*attachment}, h.downloadPrefix)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": out[0]})
}

// List handles GET /tickets/:id/attachments.
func (h *AttachmentsHandler) List(c *fiber.Ctx) error {
	attachments, err := h.attachments.ListAttachments(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentList(attachments, h.downloadPrefix)})
}

// Download handles GET /attachments/:id and streams the blob.
func (h *AttachmentsHandler) Download(c *fiber.Ctx) error {
	attachment, body, err := h.attachments.OpenAttachment(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, attachment.MimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": attachment.FileName}))
	if attachment.SizeBytes > 0 {
		return c.SendStream(body, int(attachment.SizeBytes))
	}
	return c.SendStream(body)
}

// Remove handles DELETE /admin/attachments/:id.
func (h *AttachmentsHandler) Remove(c *fiber.Ctx) error {
	if err := h.attachments.RemoveAttachment(c.UserContext(), auth.ActorFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
