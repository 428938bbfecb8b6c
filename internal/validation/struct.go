package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

var (
	sharedOnce     sync.Once
	sharedValidate *validator.Validate
)

func shared() *validator.Validate {
	sharedOnce.Do(func() {
		sharedValidate = validator.New(validator.WithRequiredStructEnabled())
		sharedValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
	return sharedValidate
}

// Struct validates v against its `validate` tags and reports failures keyed
// by json field name.
func Struct(v any) error {
	err := shared().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInternalError(err)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = describe(fe)
	}
	return apperrors.NewValidationError("invalid input", details)
}
