package dashboard

import (
	"sort"
	"time"

	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

type Summary struct {
	GeneratedAt      time.Time                 `json:"generated_at" yaml:"generated_at"`
	TotalScans       int                       `json:"total_scans" yaml:"total_scans"`
	ByStatus         map[models.ScanStatus]int `json:"by_status" yaml:"by_status"`
	TotalFindings    int                       `json:"total_findings" yaml:"total_findings"`
	CriticalFindings int                       `json:"critical_findings" yaml:"critical_findings"`
	Severity         findings.Counts           `json:"severity" yaml:"severity"`
	Chart            []findings.Slice          `json:"chart" yaml:"chart"`
	History          []findings.DayBucket      `json:"history" yaml:"history"`
	Recent           []models.Scan             `json:"recent,omitempty" yaml:"recent,omitempty"`
	Providers        []models.AIProvider       `json:"providers,omitempty" yaml:"providers,omitempty"`
}

const recentScans = 5

func BuildSummary(now time.Time, scans []models.Scan) Summary {
	counts := findings.AggregateScans(scans)
	s := Summary{
		GeneratedAt:      now,
		TotalScans:       len(scans),
		ByStatus:         make(map[models.ScanStatus]int),
		TotalFindings:    counts.All,
		CriticalFindings: counts.Critical,
		Severity:         counts,
		Chart:            findings.ChartSlices(counts),
		History:          findings.Bucketize(now, scans),
	}
	for _, sc := range scans {
		s.ByStatus[sc.Status]++
	}

	recent := make([]models.Scan, len(scans))
	copy(recent, scans)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentScans {
		recent = recent[:recentScans]
	}
	s.Recent = recent
	return s
}

// AIReady reports whether at least one analysis provider is usable.
func (s Summary) AIReady() bool {
	for _, p := range s.Providers {
		if p.Available {
			return true
		}
	}
	return false
}
