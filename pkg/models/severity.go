package models

import (
	"strings"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
	SeverityUnknown  Severity = "unknown"
)

var severityOrder = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

var severityDescriptions = map[Severity]string{
	SeverityCritical: "Immediate action required - severe security risk",
	SeverityHigh:     "High priority - significant security risk",
	SeverityMedium:   "Medium priority - moderate security risk",
	SeverityLow:      "Low priority - minor security risk",
	SeverityInfo:     "Informational finding - no immediate risk",
}

// AllSeverities returns the five known levels, most severe first.
func AllSeverities() []Severity {
	out := make([]Severity, len(severityOrder))
	copy(out, severityOrder)
	return out
}

// ParseSeverity normalises s and maps anything outside the closed set to SeverityUnknown.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Valid() {
		return sev
	}
	return SeverityUnknown
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Weight orders severities for sorting; unknown values weigh zero.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Label is the display form used by chips and charts. Unknown values render as "Info",
// the same fallback the severity chip uses.
func (s Severity) Label() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	default:
		return "Info"
	}
}

func (s Severity) Description() string {
	if d, ok := severityDescriptions[s]; ok {
		return d
	}
	return severityDescriptions[SeverityInfo]
}

func (s Severity) String() string {
	return string(s)
}
