package findings

import (
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

type Counts struct {
	Critical int `json:"critical" yaml:"critical"`
	High     int `json:"high" yaml:"high"`
	Medium   int `json:"medium" yaml:"medium"`
	Low      int `json:"low" yaml:"low"`
	Info     int `json:"info" yaml:"info"`
	Unknown  int `json:"unknown,omitempty" yaml:"unknown,omitempty"`
	All      int `json:"all" yaml:"all"`
}

func (c Counts) Get(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return c.Critical
	case models.SeverityHigh:
		return c.High
	case models.SeverityMedium:
		return c.Medium
	case models.SeverityLow:
		return c.Low
	case models.SeverityInfo:
		return c.Info
	default:
		return c.Unknown
	}
}

func (c *Counts) add(s models.Severity) {
	switch s {
	case models.SeverityCritical:
		c.Critical++
	case models.SeverityHigh:
		c.High++
	case models.SeverityMedium:
		c.Medium++
	case models.SeverityLow:
		c.Low++
	case models.SeverityInfo:
		c.Info++
	default:
		c.Unknown++
	}
	c.All++
}

// Map returns the five levels keyed by name, zero counts included.
func (c Counts) Map() map[models.Severity]int {
	m := make(map[models.Severity]int, 5)
	for _, s := range models.AllSeverities() {
		m[s] = c.Get(s)
	}
	return m
}

func Aggregate(findings []models.Finding) Counts {
	var c Counts
	for _, f := range findings {
		c.add(f.Severity)
	}
	return c
}

func AggregateScans(scans []models.Scan) Counts {
	var c Counts
	for _, s := range scans {
		for _, f := range s.Findings {
			c.add(f.Severity)
		}
	}
	return c
}

type Slice struct {
	Severity models.Severity `json:"severity" yaml:"severity"`
	Label    string          `json:"name" yaml:"name"`
	Value    int             `json:"value" yaml:"value"`
}

// ChartSlices is the pie chart input: positive counts only, most severe first.
func ChartSlices(c Counts) []Slice {
	out := make([]Slice, 0, 5)
	for _, s := range models.AllSeverities() {
		if n := c.Get(s); n > 0 {
			out = append(out, Slice{Severity: s, Label: s.Label(), Value: n})
		}
	}
	return out
}

type Badge struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// BadgeCounts feeds the severity filter options. Unlike ChartSlices it keeps
// zero counts so that every level stays selectable.
func BadgeCounts(c Counts) []Badge {
	title := cases.Title(language.English)
	out := make([]Badge, 0, 6)
	out = append(out, Badge{Value: All, Label: title.String(All), Count: c.All})
	for _, s := range models.AllSeverities() {
		out = append(out, Badge{Value: string(s), Label: s.Label(), Count: c.Get(s)})
	}
	return out
}

// SortBySeverity returns a copy ordered most severe first; ties keep their order.
func SortBySeverity(findings []models.Finding) []models.Finding {
	out := make([]models.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Weight() > out[j].Severity.Weight()
	})
	return out
}
