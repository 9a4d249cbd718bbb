package reporting

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bl4ck0w1/secdash/internal/dashboard"
	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiGray   = "\033[90m"
	ansiBright = "\033[91m"
)

var severityANSI = map[models.Severity]string{
	models.SeverityCritical: ansiBold + ansiRed,
	models.SeverityHigh:     ansiBright,
	models.SeverityMedium:   ansiYellow,
	models.SeverityLow:      ansiBlue,
	models.SeverityInfo:     ansiGray,
}

const (
	barWidth   = 40
	rule       = "═══════════════════════════════════════════════════════════════"
	timeLayout = "2006-01-02 15:04"
)

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// Renderer writes the terminal views. The first write error sticks and
// later writes become no-ops; check Err once at the end.
type Renderer struct {
	w     io.Writer
	color bool
	err   error
}

func NewRenderer(w io.Writer, color bool) *Renderer {
	return &Renderer{w: w, color: color}
}

func (r *Renderer) Err() error { return r.err }

func (r *Renderer) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *Renderer) table(fn func(w *tabwriter.Writer)) {
	if r.err != nil {
		return
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fn(tw)
	r.err = tw.Flush()
}

func (r *Renderer) paint(code, s string) string {
	if !r.color || code == "" {
		return s
	}
	return code + s + ansiReset
}

// Chip renders a severity as an upper-case tag. Unknown values use the info style.
func (r *Renderer) Chip(s models.Severity) string {
	code, ok := severityANSI[s]
	if !ok {
		code = severityANSI[models.SeverityInfo]
	}
	return r.paint(code, "["+strings.ToUpper(s.Label())+"]")
}

func (r *Renderer) heading(title string) {
	r.printf("%s\n%s\n", r.paint(ansiBold, title), rule)
}

func (r *Renderer) ScanList(scans []models.Scan) {
	if len(scans) == 0 {
		r.printf("No scans yet. Start one with: secdash scan create <url>\n")
		return
	}
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tTARGET\tSTATUS\tFINDINGS\tCRITICAL\tCREATED")
		for _, s := range scans {
			c := findings.Aggregate(s.Findings)
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				s.ID,
				utils.Truncate(s.TargetURL, 48),
				s.Status.Label(),
				c.All,
				c.Critical,
				formatTime(s.CreatedAt),
			)
		}
	})
}

func (r *Renderer) ScanDetail(s *models.Scan) {
	r.heading("Scan " + s.ID)
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "Target:\t%s\n", s.TargetURL)
		fmt.Fprintf(w, "Status:\t%s\n", s.Status.Label())
		if t := s.ScanType(); t != "" {
			fmt.Fprintf(w, "Type:\t%s\n", t)
		}
		fmt.Fprintf(w, "Created:\t%s\n", formatTime(s.CreatedAt))
		if s.CompletedAt != nil {
			fmt.Fprintf(w, "Completed:\t%s\n", formatTime(*s.CompletedAt))
			fmt.Fprintf(w, "Duration:\t%s\n", utils.HumanizeDuration(s.Duration()))
		}
		if s.Progress != nil && !s.Status.Terminal() {
			fmt.Fprintf(w, "Progress:\t%.0f%%\n", *s.Progress)
		}
		fmt.Fprintf(w, "Findings:\t%d\n", len(s.Findings))
	})
	r.printf("\n")
	r.SeverityChart(findings.ChartSlices(findings.Aggregate(s.Findings)))
}

// Badges renders the severity filter options with their counts.
func (r *Renderer) Badges(badges []findings.Badge, selected string) {
	parts := make([]string, 0, len(badges))
	for _, b := range badges {
		label := fmt.Sprintf("%s (%d)", b.Label, b.Count)
		if strings.EqualFold(b.Value, selected) {
			label = r.paint(ansiBold, "*"+label)
		}
		parts = append(parts, label)
	}
	r.printf("%s\n", strings.Join(parts, "  "))
}

// FindingsPage renders one page of the findings list view.
func (r *Renderer) FindingsPage(v *dashboard.FindingListView) {
	c := v.Criteria()
	r.Badges(v.Badges(), c.Severity)
	r.printf("\n")

	page := v.Page()
	if len(page) == 0 {
		if v.Total() == 0 {
			r.printf("No findings match the current filters.\n")
		} else {
			r.printf("Page %d is past the last page (%d).\n", v.CurrentPage(), v.Pages())
		}
		return
	}
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "SEVERITY\tTITLE\tTYPE\tLOCATION")
		for _, f := range page {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.Chip(f.Severity),
				utils.Truncate(f.Title, 60),
				emptyIf(f.Type, "-"),
				emptyIf(utils.Truncate(f.Location, 40), "-"),
			)
		}
	})
	r.printf("\nPage %d of %d (%d findings)\n", v.CurrentPage(), v.Pages(), v.Total())
}

// FindingDetails prints every finding with its full description and references.
func (r *Renderer) FindingDetails(items []models.Finding) {
	r.heading(fmt.Sprintf("Findings (%d)", len(items)))
	for i := range items {
		f := &items[i]
		r.printf("\n%s %s\n", r.Chip(f.Severity), f.Title)
		if f.Description != "" {
			r.printf("  %s\n", f.Description)
		}
		if f.Location != "" {
			r.printf("  Location:    %s\n", f.Location)
		}
		if label := f.OWASPLabel(); label != "" {
			r.printf("  OWASP:       %s\n", label)
		}
		if f.CVEID != "" {
			r.printf("  CVE:         %s (%s)\n", f.CVEID, f.GetCVELink())
		}
		if f.HasRemediation() {
			r.printf("  Remediation: %s\n", f.Remediation)
		}
	}
}

// SeverityChart draws the pie chart data as horizontal bars with percentages.
func (r *Renderer) SeverityChart(slices []findings.Slice) {
	if len(slices) == 0 {
		r.printf("No findings.\n")
		return
	}
	total, peak := 0, 0
	for _, s := range slices {
		total += s.Value
		if s.Value > peak {
			peak = s.Value
		}
	}
	r.table(func(w *tabwriter.Writer) {
		for _, s := range slices {
			n := s.Value * barWidth / peak
			if n == 0 {
				n = 1
			}
			bar := r.paint(severityANSI[s.Severity], strings.Repeat("█", n))
			fmt.Fprintf(w, "%s\t%s\t%d\t(%.0f%%)\n", s.Label, bar, s.Value, float64(s.Value)*100/float64(total))
		}
	})
}

// History renders the 30-day buckets as two sparklines.
func (r *Renderer) History(buckets []findings.DayBucket) {
	if len(buckets) == 0 {
		return
	}
	scans := make([]int, len(buckets))
	found := make([]int, len(buckets))
	totalScans, totalFindings := 0, 0
	for i, b := range buckets {
		scans[i] = b.Scans
		found[i] = b.Findings
		totalScans += b.Scans
		totalFindings += b.Findings
	}
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "Scans\t%s\t%d\n", Sparkline(scans), totalScans)
		fmt.Fprintf(w, "Findings\t%s\t%d\n", Sparkline(found), totalFindings)
	})
	r.printf("%s .. %s\n", buckets[0].Date, buckets[len(buckets)-1].Date)
}

// Sparkline maps values onto block characters; zero stays at the lowest tick.
func Sparkline(values []int) string {
	peak := 0
	for _, v := range values {
		if v > peak {
			peak = v
		}
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if peak > 0 && v > 0 {
			idx = v * (len(sparkTicks) - 1) / peak
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

func (r *Renderer) Analysis(a *models.AIAnalysis) {
	r.heading("AI Analysis")
	r.printf("Provider: %s  Model: %s  Created: %s\n\n", a.Provider, emptyIf(a.Model, "-"), formatTime(a.CreatedAt))
	if a.Failed() {
		r.printf("%s %s\n", r.paint(ansiRed, "Analysis failed:"), a.Analysis.Error)
		return
	}
	r.printf("%s\n", a.SummaryText())

	if len(a.Analysis.PrioritizedRemediation) > 0 {
		r.printf("\n%s\n", r.paint(ansiBold, "Prioritized remediation"))
	}
	for i, item := range a.Analysis.PrioritizedRemediation {
		r.printf("\n%d. %s %s\n", i+1, r.Chip(item.Priority), item.Action)
		if item.Description != "" {
			r.printf("   %s\n", item.Description)
		}
		if item.SampleCode != nil && item.SampleCode.Code != "" {
			r.printf("   --- %s ---\n", emptyIf(item.SampleCode.Language, "code"))
			for _, line := range strings.Split(strings.TrimRight(item.SampleCode.Code, "\n"), "\n") {
				r.printf("   %s\n", line)
			}
		}
		for _, ref := range item.References {
			r.printf("   ref: %s\n", ref)
		}
	}

	if len(a.Analysis.AdditionalRecommendations) > 0 {
		r.printf("\n%s\n", r.paint(ansiBold, "Additional recommendations"))
		for _, rec := range a.Analysis.AdditionalRecommendations {
			r.printf("  - %s\n", rec)
		}
	}
}

func (r *Renderer) Providers(providers []models.AIProvider) {
	if len(providers) == 0 {
		r.printf("No AI providers reported by the server.\n")
		return
	}
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NAME\tDISPLAY NAME\tAVAILABLE\tMODELS")
		for _, p := range providers {
			avail := "no"
			if p.Available {
				avail = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, emptyIf(p.DisplayName, "-"), avail, emptyIf(strings.Join(p.Models, ", "), "-"))
		}
	})
}

func (r *Renderer) Models(byProvider map[string][]string) {
	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "PROVIDER\tMODELS")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", name, emptyIf(strings.Join(byProvider[name], ", "), "-"))
		}
	})
}

func (r *Renderer) Dashboard(s dashboard.Summary) {
	r.heading("Security Dashboard")
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "Total scans:\t%d\n", s.TotalScans)
		fmt.Fprintf(w, "Running:\t%d\n", s.ByStatus[models.ScanStatusRunning]+s.ByStatus[models.ScanStatusPending])
		fmt.Fprintf(w, "Completed:\t%d\n", s.ByStatus[models.ScanStatusCompleted])
		fmt.Fprintf(w, "Failed:\t%d\n", s.ByStatus[models.ScanStatusFailed])
		fmt.Fprintf(w, "Total findings:\t%d\n", s.TotalFindings)
		fmt.Fprintf(w, "Critical findings:\t%d\n", s.CriticalFindings)
		if len(s.Providers) > 0 {
			ready := "unavailable"
			if s.AIReady() {
				ready = "ready"
			}
			fmt.Fprintf(w, "AI analysis:\t%s\n", ready)
		}
	})

	r.printf("\n%s\n", r.paint(ansiBold, "Findings by severity"))
	r.SeverityChart(s.Chart)

	r.printf("\n%s\n", r.paint(ansiBold, fmt.Sprintf("Last %d days", findings.HistoryDays)))
	r.History(s.History)

	if len(s.Recent) > 0 {
		r.printf("\n%s\n", r.paint(ansiBold, "Recent scans"))
		r.ScanList(s.Recent)
	}
}

func (r *Renderer) ReportHeader(report *ScanReport) {
	m := report.Metadata
	r.heading("Security Scan Report")
	r.table(func(w *tabwriter.Writer) {
		fmt.Fprintf(w, "Target:\t%s\n", m.TargetURL)
		fmt.Fprintf(w, "Scan ID:\t%s\n", m.ScanID)
		fmt.Fprintf(w, "Status:\t%s\n", m.Status.Label())
		fmt.Fprintf(w, "Started:\t%s\n", formatTime(m.StartedAt))
		if m.Duration != "" {
			fmt.Fprintf(w, "Duration:\t%s\n", m.Duration)
		}
		fmt.Fprintf(w, "Risk score:\t%.2f (%s)\n", report.Summary.RiskScore, report.Summary.RiskLevel)
		fmt.Fprintf(w, "Generated:\t%s\n", formatTime(report.GeneratedAt))
	})
	r.printf("\n")
}

// KeyValues prints a stats map with keys sorted.
func (r *Renderer) KeyValues(title string, stats map[string]interface{}) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r.heading(title)
	r.table(func(w *tabwriter.Writer) {
		for _, k := range keys {
			v := stats[k]
			if strings.HasSuffix(k, "_bytes") {
				if n, ok := v.(int64); ok {
					v = utils.HumanizeBytes(n)
				}
			}
			fmt.Fprintf(w, "%s:\t%v\n", k, v)
		}
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func emptyIf(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
