// Package findings holds the pure transformations behind the findings and
// dashboard views: filtering and paging findings, counting them by severity
// and bucketing scans into a trailing daily history.
//
// Nothing here performs I/O or reads the clock, and every function accepts
// nil or empty input.
package findings

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

// All matches every value of a criterion.
const All = "all"

// PageSize is the number of findings on one page.
const PageSize = 10

type Criteria struct {
	Severity string `json:"severity" yaml:"severity"`
	Type     string `json:"type" yaml:"type"`
	Query    string `json:"query" yaml:"query"`
}

func DefaultCriteria() Criteria {
	return Criteria{Severity: All, Type: All}
}

func (c Criteria) normalized() Criteria {
	if strings.TrimSpace(c.Severity) == "" {
		c.Severity = All
	}
	if strings.TrimSpace(c.Type) == "" {
		c.Type = All
	}
	return c
}

// Filter returns the findings matching every criterion, in their original order.
// The input slice is never modified.
func Filter(findings []models.Finding, c Criteria) []models.Finding {
	c = c.normalized()
	fold := cases.Fold()
	query := fold.String(c.Query)

	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		if c.Severity != All && string(f.Severity) != c.Severity {
			continue
		}
		if c.Type != All && f.Type != c.Type {
			continue
		}
		if query != "" &&
			!strings.Contains(fold.String(f.Title), query) &&
			!strings.Contains(fold.String(f.Description), query) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Paginate returns the 1-indexed page of items. Pages outside the range are empty.
func Paginate[T any](items []T, page int) []T {
	if page < 1 || page > PageCount(len(items)) {
		return []T{}
	}
	start := (page - 1) * PageSize
	end := start + PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func PageCount(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PageSize - 1) / PageSize
}

// Types lists the distinct finding types in first-seen order.
func Types(findings []models.Finding) []string {
	seen := make(map[string]struct{}, len(findings))
	var out []string
	for _, f := range findings {
		if f.Type == "" {
			continue
		}
		if _, ok := seen[f.Type]; ok {
			continue
		}
		seen[f.Type] = struct{}{}
		out = append(out, f.Type)
	}
	return out
}
