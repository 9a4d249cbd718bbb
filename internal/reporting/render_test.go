package reporting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/secdash/internal/dashboard"
	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

func TestSparkline(t *testing.T) {
	assert.Equal(t, "▁▁▁", Sparkline([]int{0, 0, 0}))
	assert.Equal(t, "▁▄█", Sparkline([]int{0, 4, 8}))
	assert.Equal(t, "", Sparkline(nil))
}

func TestRenderer_Chip(t *testing.T) {
	plain := NewRenderer(&bytes.Buffer{}, false)
	assert.Equal(t, "[CRITICAL]", plain.Chip(models.SeverityCritical))
	assert.Equal(t, "[INFO]", plain.Chip("whatever"))

	colored := NewRenderer(&bytes.Buffer{}, true)
	chip := colored.Chip(models.SeverityHigh)
	assert.True(t, strings.HasPrefix(chip, "\033["))
	assert.Contains(t, chip, "[HIGH]")
}

func TestRenderer_ScanList(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.ScanList(nil)
	assert.Contains(t, buf.String(), "No scans yet")

	buf.Reset()
	r.ScanList([]models.Scan{sampleScan()})
	require.NoError(t, r.Err())
	out := buf.String()
	assert.Contains(t, out, "TARGET")
	assert.Contains(t, out, "https://shop.example.com")
	assert.Contains(t, out, "Completed")
}

func TestRenderer_FindingsPage(t *testing.T) {
	scan := sampleScan()
	v := dashboard.NewFindingListView(scan.Findings)
	v.SetType("vulnerability")

	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.FindingsPage(v)
	require.NoError(t, r.Err())
	out := buf.String()
	assert.Contains(t, out, "*All (4)")
	assert.Contains(t, out, "Info (0)")
	assert.Contains(t, out, "SQL injection in search")
	assert.NotContains(t, out, "Missing CSP header")
	assert.Contains(t, out, "Page 1 of 1 (2 findings)")

	buf.Reset()
	v.SetPage(3)
	r.FindingsPage(v)
	assert.Contains(t, buf.String(), "Page 3 is past the last page (1)")

	buf.Reset()
	v.SetQuery("nothing matches this")
	r.FindingsPage(v)
	assert.Contains(t, buf.String(), "No findings match")
}

func TestRenderer_SeverityChart(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.SeverityChart(findings.ChartSlices(findings.Counts{Critical: 1, Low: 3, All: 4}))
	out := buf.String()
	assert.Contains(t, out, "Critical")
	assert.Contains(t, out, "(25%)")
	assert.Contains(t, out, "(75%)")
	assert.NotContains(t, out, "Medium")

	buf.Reset()
	r.SeverityChart(nil)
	assert.Equal(t, "No findings.\n", buf.String())
}

func TestRenderer_Dashboard(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	scan := sampleScan()
	s := dashboard.BuildSummary(now, []models.Scan{scan})
	s.Providers = []models.AIProvider{{Name: "ollama", Available: true}}

	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.Dashboard(s)
	require.NoError(t, r.Err())
	out := buf.String()
	assert.Contains(t, out, "Security Dashboard")
	assert.Contains(t, out, "Critical findings:")
	assert.Contains(t, out, "ready")
	assert.Contains(t, out, "Last 30 days")
	assert.Contains(t, out, "2024-02-15 .. 2024-03-15")
}

func TestRenderer_AnalysisFailed(t *testing.T) {
	a := sampleAnalysis()
	a.Analysis.Error = "model not loaded"

	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.Analysis(a)
	assert.Contains(t, buf.String(), "Analysis failed: model not loaded")
	assert.NotContains(t, buf.String(), "Prioritized remediation")
}

func TestRenderer_KeyValues(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.KeyValues("Storage", map[string]interface{}{
		"total_size_bytes": int64(2048),
		"driver":           "file",
	})
	out := buf.String()
	assert.Contains(t, out, "2.00 KB")
	assert.Less(t, strings.Index(out, "driver"), strings.Index(out, "total_size_bytes"))
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestRenderer_StickyError(t *testing.T) {
	r := NewRenderer(failWriter{}, false)
	r.ScanList(nil)
	r.Analysis(sampleAnalysis())
	assert.ErrorIs(t, r.Err(), assert.AnError)
}
