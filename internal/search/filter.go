package search

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilter is returned for filters the search endpoint refuses.
var ErrInvalidFilter = errors.New("invalid search filter")

// NoFilter as a market selects the configured default market.
const NoFilter = "nf"

var (
	markets     = []string{"en-US", "ja-JP", "fr-FR", "de-DE", "it-IT", "ru-RU", "ko-KR"}
	domains     = []string{".com", ".org", ".mil", ".gov", ".edu", ".net"}
	freshnesses = []string{"Day", "Week", "Month"}
)

// Filter is the search form submitted by the tab.
type Filter struct {
	SearchText string   `json:"searchText"`
	Domains    []string `json:"domains"`
	Freshness  string   `json:"freshness"`
	Market     string   `json:"market"`
}

// Validate checks the filter against the supported markets, domains and freshness values.
func (f Filter) Validate() error {
	if strings.TrimSpace(f.SearchText) == "" {
		return fmt.Errorf("%w: search text cannot be empty", ErrInvalidFilter)
	}
	if !f.noMarketFilter() && !containsFold(markets, f.Market) {
		return fmt.Errorf("%w: market %q is not supported", ErrInvalidFilter, f.Market)
	}
	for _, d := range f.Domains {
		if !oneOf(domains, d) {
			return fmt.Errorf("%w: domain %q is not supported", ErrInvalidFilter, d)
		}
	}
	if f.Freshness != "" && !oneOf(freshnesses, f.Freshness) {
		return fmt.Errorf("%w: freshness %q is not supported", ErrInvalidFilter, f.Freshness)
	}
	return nil
}

func (f Filter) noMarketFilter() bool {
	return strings.Contains(strings.ToLower(f.Market), NoFilter)
}

// containsFold reports whether value contains any of the candidates, ignoring case.
func containsFold(candidates []string, value string) bool {
	if value == "" {
		return false
	}
	lower := strings.ToLower(value)
	for _, c := range candidates {
		if strings.Contains(lower, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

func oneOf(candidates []string, value string) bool {
	for _, c := range candidates {
		if strings.EqualFold(c, value) {
			return true
		}
	}
	return false
}
