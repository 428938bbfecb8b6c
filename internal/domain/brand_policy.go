package domain

import (
	"sort"
	"strings"
)

// ConditionalField names a descriptive field that a brand can make mandatory.
type ConditionalField string

const (
	FieldBatchNumber       ConditionalField = "batch_number"
	FieldManufacturingDate ConditionalField = "manufacturing_date"
)

// Valid reports whether f is a field the policy table understands.
func (f ConditionalField) Valid() bool {
	return f == FieldBatchNumber || f == FieldManufacturingDate
}

// BrandPolicy maps a brand to the extra fields it requires. Brand keys are
// matched case-insensitively on trimmed names.
type BrandPolicy struct {
	rules map[string][]ConditionalField
}

// NewBrandPolicy builds a policy from a brand → fields table.
func NewBrandPolicy(rules map[string][]ConditionalField) BrandPolicy {
	normalized := make(map[string][]ConditionalField, len(rules))
	for brand, fields := range rules {
		key := normalizeBrand(brand)
		if key == "" {
			continue
		}
		normalized[key] = append([]ConditionalField(nil), fields...)
	}
	return BrandPolicy{rules: normalized}
}

// DefaultBrandPolicy requires batch number and manufacturing date for MET and Hutchinson.
func DefaultBrandPolicy() BrandPolicy {
	both := []ConditionalField{FieldBatchNumber, FieldManufacturingDate}
	return NewBrandPolicy(map[string][]ConditionalField{
		"MET":        both,
		"Hutchinson": both,
	})
}

// RequiredFor returns the extra fields required for brand; nil when unrestricted.
func (p BrandPolicy) RequiredFor(brand string) []ConditionalField {
	return p.rules[normalizeBrand(brand)]
}

// Restricted reports whether brand carries any extra requirement.
func (p BrandPolicy) Restricted(brand string) bool {
	return len(p.RequiredFor(brand)) > 0
}

// Brands returns the restricted brand keys in sorted order.
func (p BrandPolicy) Brands() []string {
	brands := make([]string, 0, len(p.rules))
	for brand := range p.rules {
		brands = append(brands, brand)
	}
	sort.Strings(brands)
	return brands
}

func normalizeBrand(brand string) string {
	return strings.ToLower(strings.TrimSpace(brand))
}
