package domain

import (
	"fmt"
	"strings"
)

// Filter is a conjunction of equality constraints over chunk metadata.
// A nil field places no constraint on that key.
type Filter struct {
	CompanyName *string `json:"company_name,omitempty"`
	Year        *string `json:"year,omitempty"`
}

// NewFilter builds a Filter from user selections; blank values are unconstrained.
func NewFilter(companyName, year string) Filter {
	var f Filter
	if v := strings.TrimSpace(companyName); v != "" {
		f.CompanyName = &v
	}
	if v := strings.TrimSpace(year); v != "" {
		f.Year = &v
	}
	return f
}

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	return f.CompanyName == nil && f.Year == nil
}

// Constraints returns the filter as a metadata key/value mapping.
func (f Filter) Constraints() map[string]string {
	out := make(map[string]string, 2)
	if f.CompanyName != nil {
		out[MetaCompanyName] = *f.CompanyName
	}
	if f.Year != nil {
		out[MetaYear] = *f.Year
	}
	return out
}

// Matches reports whether m satisfies every constraint.
func (f Filter) Matches(m Metadata) bool {
	for k, v := range f.Constraints() {
		if m[k] != v {
			return false
		}
	}
	return true
}

// Equal compares two filters by value.
func (f Filter) Equal(other Filter) bool {
	return ptrEqual(f.CompanyName, other.CompanyName) && ptrEqual(f.Year, other.Year)
}

func (f Filter) String() string {
	if f.IsEmpty() {
		return "no filters"
	}
	var parts []string
	if f.CompanyName != nil {
		parts = append(parts, fmt.Sprintf("Co: %s", *f.CompanyName))
	}
	if f.Year != nil {
		parts = append(parts, fmt.Sprintf("Year: %s", *f.Year))
	}
	return strings.Join(parts, ", ")
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
