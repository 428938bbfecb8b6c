package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/warranty-portal/internal/domain"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// DefaultMinIssueLength is the minimum issue description length in characters.
const DefaultMinIssueLength = 20

const minBatchNumberLength = 3

// TicketValidator checks descriptive ticket fields: static rules come from
// struct tags, brand-dependent rules from the policy table.
type TicketValidator struct {
	validate       *validator.Validate
	brands         domain.BrandPolicy
	minIssueLength int
}

// NewTicketValidator builds a validator over the given brand policy.
func NewTicketValidator(brands domain.BrandPolicy, minIssueLength int) *TicketValidator {
	if minIssueLength <= 0 {
		minIssueLength = DefaultMinIssueLength
	}
	return &TicketValidator{
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		brands:         brands,
		minIssueLength: minIssueLength,
	}
}

// Brands exposes the policy table.
func (v *TicketValidator) Brands() domain.BrandPolicy {
	return v.brands
}

// Normalize trims every string field in place.
func Normalize(fields *domain.TicketFields) {
	fields.ProductName = strings.TrimSpace(fields.ProductName)
	fields.Brand = strings.TrimSpace(fields.Brand)
	fields.Model = strings.TrimSpace(fields.Model)
	fields.SKU = strings.TrimSpace(fields.SKU)
	fields.IssueDescription = strings.TrimSpace(fields.IssueDescription)
	fields.BatchNumber = strings.TrimSpace(fields.BatchNumber)
}

// Validate returns a Validation error listing every failing field, or nil.
func (v *TicketValidator) Validate(fields domain.TicketFields) error {
	Normalize(&fields)
	details := map[string]any{}

	if err := v.validate.Struct(fields); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return apperrors.NewInternalError(err)
		}
		for _, fe := range fieldErrs {
			details[fieldName(fe.StructField())] = describe(fe)
		}
	}

	if _, failed := details["issue_description"]; !failed {
		if utf8.RuneCountInString(fields.IssueDescription) < v.minIssueLength {
			details["issue_description"] = "must be at least " + strconv.Itoa(v.minIssueLength) + " characters"
		}
	}

	for _, field := range v.brands.RequiredFor(fields.Brand) {
		switch field {
		case domain.FieldBatchNumber:
			if utf8.RuneCountInString(fields.BatchNumber) < minBatchNumberLength {
				details[string(field)] = "required for brand " + fields.Brand
			}
		case domain.FieldManufacturingDate:
			if fields.ManufacturingDate == nil || fields.ManufacturingDate.IsZero() {
				details[string(field)] = "required for brand " + fields.Brand
			}
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket fields", details)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "invalid"
	}
}

var structFieldNames = map[string]string{
	"ProductName":       "product_name",
	"Brand":             "brand",
	"Model":             "model",
	"SKU":               "sku",
	"IssueDescription":  "issue_description",
	"BatchNumber":       "batch_number",
	"ManufacturingDate": "manufacturing_date",
}

func fieldName(structField string) string {
	if name, ok := structFieldNames[structField]; ok {
		return name
	}
	return strings.ToLower(structField)
}
