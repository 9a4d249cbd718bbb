package reporting

import (
	"math"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

// RiskScorer turns severity mixes into a 0-10 score.
type RiskScorer struct {
	severityWeights map[models.Severity]float64
}

func NewRiskScorer() *RiskScorer {
	return NewRiskScorerWithWeights(nil)
}

func NewRiskScorerWithWeights(override map[string]float64) *RiskScorer {
	base := map[models.Severity]float64{
		models.SeverityCritical: 10.0,
		models.SeverityHigh:     7.5,
		models.SeverityMedium:   5.0,
		models.SeverityLow:      2.5,
		models.SeverityInfo:     1.0,
	}
	for k, v := range override {
		if s := models.ParseSeverity(k); s.Valid() && v >= 0 {
			base[s] = v
		}
	}
	return &RiskScorer{severityWeights: base}
}

func (rs *RiskScorer) FindingScore(f models.Finding) float64 {
	w, ok := rs.severityWeights[models.ParseSeverity(string(f.Severity))]
	if !ok {
		return rs.severityWeights[models.SeverityInfo]
	}
	if f.CVEID != "" {
		w *= 1.1
	}
	return math.Min(w, 10)
}

// OverallScore is the highest finding score, nudged up by the volume of
// other critical and high findings, capped at 10.
func (rs *RiskScorer) OverallScore(findings []models.Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var top float64
	serious := 0
	for _, f := range findings {
		s := rs.FindingScore(f)
		if s > top {
			top = s
		}
		switch models.ParseSeverity(string(f.Severity)) {
		case models.SeverityCritical, models.SeverityHigh:
			serious++
		}
	}
	if serious > 1 {
		top += 0.5 * math.Log2(float64(serious))
	}
	if top > 10 {
		top = 10
	}
	return math.Round(top*100) / 100
}

func RiskLevel(score float64) string {
	switch {
	case score >= 9:
		return "Critical"
	case score >= 7:
		return "High"
	case score >= 4:
		return "Medium"
	case score > 0:
		return "Low"
	default:
		return "None"
	}
}
