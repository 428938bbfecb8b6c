package handlers

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/warranty-portal/internal/service"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

const filesField = "files"

// multipartForm parses the request as multipart/form-data.
func multipartForm(c *fiber.Ctx) (*multipart.Form, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil, apperrors.NewValidationError("multipart/form-data body required", nil)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid multipart body", map[string]any{"body": err.Error()})
	}
	return form, nil
}

// openUploads opens every file under field. The returned func closes them.
func openUploads(form *multipart.Form, field string) ([]service.Upload, func(), error) {
	headers := form.File[field]
	uploads := make([]service.Upload, 0, len(headers))
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, apperrors.NewValidationError("unreadable file", map[string]any{fh.Filename: err.Error()})
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
