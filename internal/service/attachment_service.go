package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-portal/internal/clock"
	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/repository"
	"github.com/spec-kit/warranty-portal/internal/storage"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// DefaultMaxUploadBytes caps a single attachment.
const DefaultMaxUploadBytes int64 = 10 << 20

// StaffUploadScope prefixes blob keys for files staff attach to a customer's ticket.
const StaffUploadScope = "admin-uploads"

// Upload is one file submitted by a caller.
type Upload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// UploadFailure reports why one file of a batch was not attached.
type UploadFailure struct {
	Index    int    `json:"index"`
	FileName string `json:"file_name"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// AttachmentBatch is the outcome of a multi-file upload.
type AttachmentBatch struct {
	Attachments []domain.Attachment
	Failed      []UploadFailure
}

// AttachmentRef describes a blob that already sits in the store.
type AttachmentRef struct {
	Path      string
	FileName  string
	MimeType  string
	SizeBytes int64
}

// uploader puts blobs under collision-free keys and builds ledger rows for them.
type uploader struct {
	blobs    storage.BlobStore
	maxBytes int64
	logger   *zap.Logger
}

// BlobKey builds {scope}/{ticketID}/{unixMillis}_{index}_{random}.{ext}.
func BlobKey(scope, ticketID string, at time.Time, index int, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("%s/%s/%d_%d_%s.%s", scope, ticketID, at.UnixMilli(), index, suffix, ext)
}

func uploadScope(actor domain.Actor, ticket *domain.Ticket) string {
	if actor.Owns(ticket) {
		return ticket.OwnerID
	}
	return StaffUploadScope
}

func (u *uploader) put(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, index int, up Upload, at time.Time) (domain.Attachment, error) {
	if up.Content == nil {
		return domain.Attachment{}, apperrors.NewValidationError("file has no content", nil)
	}
	data, err := io.ReadAll(io.LimitReader(up.Content, u.maxBytes+1))
	if err != nil {
		return domain.Attachment{}, apperrors.NewValidationError("file could not be read", map[string]any{"reason": err.Error()})
	}
	if len(data) == 0 {
		return domain.Attachment{}, apperrors.NewValidationError("file is empty", nil)
	}
	if int64(len(data)) > u.maxBytes {
		return domain.Attachment{}, apperrors.NewValidationError("file too large", map[string]any{"max_bytes": u.maxBytes})
	}

	detected := mimetype.Detect(data)
	contentType := strings.TrimSpace(up.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detected.String()
	}
	ext := fileExtension(up.FileName, detected)

	key := BlobKey(uploadScope(actor, ticket), ticket.ID, at, index, ext)
	if err := u.blobs.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return domain.Attachment{}, apperrors.NewDependency("blob store", err)
	}

	name := filepath.Base(strings.TrimSpace(up.FileName))
	if name == "." || name == "/" || name == "" {
		name = filepath.Base(key)
	}
	return domain.Attachment{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		Path:       key,
		FileName:   name,
		MimeType:   contentType,
		SizeBytes:  int64(len(data)),
		UploadedBy: actor.ID,
		CreatedAt:  at,
	}, nil
}

// putAll stores every upload it can and reports the rest per file.
func (u *uploader) putAll(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, uploads []Upload, at time.Time) ([]domain.Attachment, []UploadFailure) {
	stored := make([]domain.Attachment, 0, len(uploads))
	var failed []UploadFailure
	for i, up := range uploads {
		attachment, err := u.put(ctx, actor, ticket, i, up, at)
		if err != nil {
			u.logger.Warn("attachment upload failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("file_name", up.FileName),
				zap.Error(err))
			failed = append(failed, UploadFailure{
				Index:    i,
				FileName: up.FileName,
				Code:     apperrors.KindOf(err),
				Reason:   apperrors.ToDomainError(err).Message,
			})
			continue
		}
		stored = append(stored, attachment)
	}
	return stored, failed
}

// discard removes blobs whose ledger rows never committed.
func (u *uploader) discard(ctx context.Context, attachments []domain.Attachment) {
	for _, attachment := range attachments {
		if err := u.blobs.Delete(ctx, attachment.Path); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			u.logger.Warn("orphaned blob cleanup failed",
				zap.String("ticket_id", attachment.TicketID),
				zap.String("path", attachment.Path),
				zap.Error(err))
		}
	}
}

// batchError summarizes a batch in which every file failed.
func batchError(failed []UploadFailure) error {
	details := map[string]any{"failed": failed}
	for _, f := range failed {
		if f.Code != apperrors.CodeValidation {
			details["dependency"] = "blob store"
			return apperrors.NewDomainError(apperrors.CodeDependency, "no file could be stored", http.StatusServiceUnavailable, details)
		}
	}
	return apperrors.NewValidationError("no valid file was provided", details)
}

func fileExtension(fileName string, detected *mimetype.MIME) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))), ".")
	if ext == "" || !isAlnum(ext) {
		ext = strings.TrimPrefix(detected.Extension(), ".")
	}
	if ext == "" || !isAlnum(ext) {
		ext = "bin"
	}
	return ext
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}

// AttachmentService is the attachment ledger: metadata rows in the store,
// payloads in the blob store.
type AttachmentService struct {
	core
	uploader *uploader
	blobs    storage.BlobStore
}

// AttachmentDependencies bundles collaborators for the attachment service.
type AttachmentDependencies struct {
	Store          repository.Store
	Blobs          storage.BlobStore
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// NewAttachmentService constructs the service.
func NewAttachmentService(deps AttachmentDependencies) *AttachmentService {
	c := newCore(deps.Store, deps.Dispatcher, deps.Clock, deps.Logger)
	return &AttachmentService{
		core:     c,
		uploader: newUploader(deps.Blobs, deps.MaxUploadBytes, c.logger),
		blobs:    deps.Blobs,
	}
}

func newUploader(blobs storage.BlobStore, maxBytes int64, logger *zap.Logger) *uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &uploader{blobs: blobs, maxBytes: maxBytes, logger: logger}
}

// AddAttachment records an already stored blob against a ticket. Owner or staff only.
func (s *AttachmentService) AddAttachment(ctx context.Context, actor domain.Actor, ticketID string, ref AttachmentRef) (*domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	ref.Path = strings.TrimSpace(ref.Path)
	ref.MimeType = strings.TrimSpace(ref.MimeType)
	details := map[string]any{}
	if ref.Path == "" {
		details["path"] = "required"
	}
	if ref.MimeType == "" {
		details["mime_type"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid attachment", details)
	}

	var attachment domain.Attachment
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		ticket, err := loadTicket(ctx, tx, actor, ticketID)
		if err != nil {
			return err
		}
		if !refInTicketScope(ticket, ref.Path) {
			return apperrors.NewValidationError("attachment path must sit under this ticket's upload prefix", map[string]any{
				"path":     ref.Path,
				"prefixes": ticketPrefixes(ticket),
			})
		}
		if err := s.requireBlob(ctx, ref.Path); err != nil {
			return err
		}
		name := ref.FileName
		if name == "" {
			name = filepath.Base(ref.Path)
		}
		attachment = domain.Attachment{
			ID:         uuid.NewString(),
			TicketID:   ticket.ID,
			Path:       ref.Path,
			FileName:   name,
			MimeType:   ref.MimeType,
			SizeBytes:  ref.SizeBytes,
			UploadedBy: actor.ID,
			CreatedAt:  s.now(time.Time{}),
		}
		if err := tx.Attachments().Create(ctx, &attachment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConflict("attachment path already used on this ticket", map[string]any{"path": ref.Path})
			}
			return mapRepoError(err, "attachment", attachment.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, []events.Event{attachmentEvent(events.EventAttachmentAdded, actor, attachment)})
	return &attachment, nil
}

// ticketPrefixes lists the key prefixes blobs of ticket may live under.
func ticketPrefixes(ticket *domain.Ticket) []string {
	return []string{
		ticket.OwnerID + "/" + ticket.ID + "/",
		StaffUploadScope + "/" + ticket.ID + "/",
	}
}

func refInTicketScope(ticket *domain.Ticket, key string) bool {
	if path.Clean(key) != key {
		return false
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return false
		}
	}
	for _, prefix := range ticketPrefixes(ticket) {
		if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
			return true
		}
	}
	return false
}

func (s *AttachmentService) requireBlob(ctx context.Context, key string) error {
	body, err := s.blobs.Get(ctx, key)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return apperrors.NewValidationError("no stored file at attachment path", map[string]any{"path": key})
	}
	if err != nil {
		return apperrors.NewDependency("blob store", err)
	}
	body.Close()
	return nil
}

// AddAttachments uploads files to a ticket. Files that fail are reported in
// the batch; the call fails only when none could be attached.
func (s *AttachmentService) AddAttachments(ctx context.Context, actor domain.Actor, ticketID string, uploads []Upload) (*AttachmentBatch, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, apperrors.NewValidationError("at least one file is required", map[string]any{"files": "required"})
	}
	ticket, err := loadTicket(ctx, s.store, actor, ticketID)
	if err != nil {
		return nil, err
	}

	at := s.now(time.Time{})
	stored, failed := s.uploader.putAll(ctx, actor, ticket, uploads, at)
	if len(stored) == 0 {
		return nil, batchError(failed)
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := loadTicket(ctx, tx, actor, ticketID); err != nil {
			return err
		}
		for i := range stored {
			if err := tx.Attachments().Create(ctx, &stored[i]); err != nil {
				return mapRepoError(err, "attachment", stored[i].ID)
			}
		}
		return nil
	})
	if err != nil {
		s.uploader.discard(ctx, stored)
		return nil, err
	}

	evts := make([]events.Event, 0, len(stored))
	for _, attachment := range stored {
		evts = append(evts, attachmentEvent(events.EventAttachmentAdded, actor, attachment))
	}
	s.publish(ctx, evts)
	return &AttachmentBatch{Attachments: stored, Failed: failed}, nil
}

// RemoveAttachment deletes the ledger row and its blob together. Staff only.
// If the blob cannot be deleted the row deletion is rolled back. If the
// transaction fails after the blob is gone, the blob is written back.
func (s *AttachmentService) RemoveAttachment(ctx context.Context, actor domain.Actor, attachmentID string) error {
	if err := requireStaff(actor, "remove attachments"); err != nil {
		return err
	}
	var (
		removed domain.Attachment
		saved   []byte
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		saved = nil
		attachment, err := tx.Attachments().GetByID(ctx, attachmentID)
		if err != nil {
			return mapRepoError(err, "attachment", attachmentID)
		}
		if err := tx.Attachments().Delete(ctx, attachmentID); err != nil {
			return mapRepoError(err, "attachment", attachmentID)
		}
		data, err := s.readBlob(ctx, attachment.Path)
		if err != nil {
			return err
		}
		if err := s.blobs.Delete(ctx, attachment.Path); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			return apperrors.NewDependency("blob store", err)
		}
		saved = data
		removed = *attachment
		return nil
	})
	if err != nil {
		if saved != nil {
			s.restoreBlob(ctx, removed, saved)
		}
		return err
	}
	s.publish(ctx, []events.Event{attachmentEvent(events.EventAttachmentRemoved, actor, removed)})
	return nil
}

// readBlob returns the blob's bytes, or nil when it is already gone.
func (s *AttachmentService) readBlob(ctx context.Context, key string) ([]byte, error) {
	body, err := s.blobs.Get(ctx, key)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDependency("blob store", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperrors.NewDependency("blob store", err)
	}
	return data, nil
}

func (s *AttachmentService) restoreBlob(ctx context.Context, attachment domain.Attachment, data []byte) {
	if err := s.blobs.Put(context.WithoutCancel(ctx), attachment.Path, bytes.NewReader(data), attachment.MimeType); err != nil {
		s.logger.Error("failed to restore attachment blob after rollback",
			zap.String("attachment_id", attachment.ID),
			zap.String("path", attachment.Path),
			zap.Error(err),
		)
	}
}

// ListAttachments returns a ticket's attachments oldest first.
func (s *AttachmentService) ListAttachments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := loadTicket(ctx, s.store, actor, ticketID); err != nil {
		return nil, err
	}
	attachments, err := s.store.Attachments().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "attachment", "")
	}
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	return attachments, nil
}

// OpenAttachment streams an attachment's blob. The caller closes the reader.
func (s *AttachmentService) OpenAttachment(ctx context.Context, actor domain.Actor, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	attachment, err := s.store.Attachments().GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, mapRepoError(err, "attachment", attachmentID)
	}
	if _, err := loadTicket(ctx, s.store, actor, attachment.TicketID); err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Get(ctx, attachment.Path)
	if errors.Is(err, storage.ErrBlobNotFound) {
		return nil, nil, apperrors.NewNotFound("attachment blob", map[string]any{"id": attachmentID})
	}
	if err != nil {
		return nil, nil, apperrors.NewDependency("blob store", err)
	}
	return attachment, body, nil
}

func attachmentEvent(eventType events.EventType, actor domain.Actor, attachment domain.Attachment) events.Event {
	return events.Event{
		Type:     eventType,
		TicketID: attachment.TicketID,
		Actor:    eventActor(actor),
		Payload: events.AttachmentPayload{
			AttachmentID: attachment.ID,
			Path:         attachment.Path,
			MimeType:     attachment.MimeType,
		},
	}
}
