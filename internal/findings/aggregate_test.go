package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

func TestAggregate_Example(t *testing.T) {
	fs := []models.Finding{
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityHigh},
	}
	c := Aggregate(fs)

	assert.Equal(t, map[models.Severity]int{
		models.SeverityCritical: 2,
		models.SeverityHigh:     1,
		models.SeverityMedium:   0,
		models.SeverityLow:      0,
		models.SeverityInfo:     0,
	}, c.Map())
	assert.Equal(t, 3, c.All)

	assert.Equal(t, []Slice{
		{Severity: models.SeverityCritical, Label: "Critical", Value: 2},
		{Severity: models.SeverityHigh, Label: "High", Value: 1},
	}, ChartSlices(c))
}

func TestAggregate_Empty(t *testing.T) {
	c := Aggregate(nil)
	assert.Len(t, c.Map(), 5)
	for s, n := range c.Map() {
		assert.Zero(t, n, s)
	}
	assert.Zero(t, c.All)
	assert.Empty(t, ChartSlices(c))
}

func TestAggregate_SumEqualsTotal(t *testing.T) {
	fs := append(sampleFindings(), models.Finding{Severity: models.SeverityLow}, models.Finding{Severity: models.SeverityInfo})
	c := Aggregate(fs)

	sum := 0
	for _, n := range c.Map() {
		sum += n
	}
	assert.Equal(t, len(fs), sum)
	assert.Equal(t, len(fs), c.All)
}

func TestAggregate_UnknownSeverityDoesNotPanic(t *testing.T) {
	c := Aggregate([]models.Finding{{Severity: ""}, {Severity: "bogus"}, {Severity: models.SeverityLow}})
	assert.Equal(t, 3, c.All)
	assert.Equal(t, 2, c.Unknown)
	assert.Equal(t, 1, c.Low)
	assert.Equal(t, []Slice{{Severity: models.SeverityLow, Label: "Low", Value: 1}}, ChartSlices(c))
}

func TestBadgeCounts_KeepsZeros(t *testing.T) {
	c := Aggregate([]models.Finding{{Severity: models.SeverityHigh}})
	badges := BadgeCounts(c)

	assert.Equal(t, []Badge{
		{Value: "all", Label: "All", Count: 1},
		{Value: "critical", Label: "Critical", Count: 0},
		{Value: "high", Label: "High", Count: 1},
		{Value: "medium", Label: "Medium", Count: 0},
		{Value: "low", Label: "Low", Count: 0},
		{Value: "info", Label: "Info", Count: 0},
	}, badges)
}

func TestAggregateScans(t *testing.T) {
	scans := []models.Scan{
		{Findings: []models.Finding{{Severity: models.SeverityCritical}}},
		{},
		{Findings: []models.Finding{{Severity: models.SeverityCritical}, {Severity: models.SeverityMedium}}},
	}
	c := AggregateScans(scans)
	assert.Equal(t, 2, c.Critical)
	assert.Equal(t, 1, c.Medium)
	assert.Equal(t, 3, c.All)
}

func TestSortBySeverity(t *testing.T) {
	in := sampleFindings()
	got := SortBySeverity(in)
	assert.Equal(t, []string{"3", "1", "5", "2", "4"}, ids(got))
	assert.Equal(t, "1", in[0].ID)
}
