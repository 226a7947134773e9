package service

import (
	"context"
	"sort"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// MetadataSource lists distinct metadata values.
type MetadataSource interface {
	MetadataValues(ctx context.Context, key string) ([]string, error)
}

// FilterOptions are the selectable company and year values of a collection.
type FilterOptions struct {
	Companies []string `json:"companies"`
	Years     []string `json:"years"`
}

// AvailableFilters returns companies ascending and years descending, without
// placeholder values.
func AvailableFilters(ctx context.Context, src MetadataSource) (FilterOptions, error) {
	companies, err := src.MetadataValues(ctx, domain.MetaCompanyName)
	if err != nil {
		return FilterOptions{}, err
	}
	years, err := src.MetadataValues(ctx, domain.MetaYear)
	if err != nil {
		return FilterOptions{}, err
	}

	opts := FilterOptions{
		Companies: withoutPlaceholders(companies),
		Years:     withoutPlaceholders(years),
	}
	sort.Strings(opts.Companies)
	sort.Sort(sort.Reverse(sort.StringSlice(opts.Years)))
	return opts, nil
}

func withoutPlaceholders(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if domain.IsPlaceholder(v) || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
