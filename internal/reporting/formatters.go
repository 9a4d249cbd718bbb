package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type JSONFormatter struct{}

func (f *JSONFormatter) Format(report *ScanReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (f *JSONFormatter) FileExtension() string { return "json" }

type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(report *ScanReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *YAMLFormatter) FileExtension() string { return "yaml" }

// TextFormatter renders the same layout the terminal views use.
type TextFormatter struct{}

func (f *TextFormatter) Format(report *ScanReport) ([]byte, error) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false)
	r.ReportHeader(report)
	r.SeverityChart(report.Summary.Chart)
	fmt.Fprintln(&buf)
	r.FindingDetails(report.Findings)
	if report.Analysis != nil {
		fmt.Fprintln(&buf)
		r.Analysis(report.Analysis)
	}
	return buf.Bytes(), r.Err()
}

func (f *TextFormatter) FileExtension() string { return "txt" }

type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(report *ScanReport) ([]byte, error) {
	var b strings.Builder
	m := report.Metadata

	fmt.Fprintf(&b, "# Security Scan Report: %s\n\n", mdEscape(m.TargetURL))
	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Scan ID | `%s` |\n", m.ScanID)
	fmt.Fprintf(&b, "| Status | %s |\n", m.Status.Label())
	if m.ScanType != "" {
		fmt.Fprintf(&b, "| Scan type | %s |\n", m.ScanType)
	}
	fmt.Fprintf(&b, "| Started | %s |\n", m.StartedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if m.Duration != "" {
		fmt.Fprintf(&b, "| Duration | %s |\n", m.Duration)
	}
	fmt.Fprintf(&b, "| Risk score | %.2f (%s) |\n\n", report.Summary.RiskScore, report.Summary.RiskLevel)

	b.WriteString("## Severity breakdown\n\n")
	if len(report.Summary.Chart) == 0 {
		b.WriteString("No findings.\n\n")
	} else {
		b.WriteString("| Severity | Findings |\n|---|---:|\n")
		for _, s := range report.Summary.Chart {
			fmt.Fprintf(&b, "| %s | %d |\n", s.Label, s.Value)
		}
		b.WriteString("\n")
	}

	if len(report.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", mdEscape(rec.Title), rec.Severity.Label(), mdEscape(rec.Remediation))
			for _, a := range rec.Affected {
				fmt.Fprintf(&b, "  - %s\n", mdEscape(a))
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Findings (%d)\n\n", report.Summary.TotalFindings)
	for i := range report.Findings {
		f := &report.Findings[i]
		fmt.Fprintf(&b, "### [%s] %s\n\n", f.Severity.Label(), mdEscape(f.Title))
		if f.Description != "" {
			fmt.Fprintf(&b, "%s\n\n", mdEscape(f.Description))
		}
		if f.Location != "" {
			fmt.Fprintf(&b, "- Location: `%s`\n", f.Location)
		}
		if f.Type != "" {
			fmt.Fprintf(&b, "- Type: %s\n", f.Type)
		}
		if label := f.OWASPLabel(); label != "" {
			fmt.Fprintf(&b, "- OWASP: %s\n", label)
		}
		if f.CVEID != "" {
			fmt.Fprintf(&b, "- CVE: [%s](%s)\n", f.CVEID, f.GetCVELink())
		}
		if f.HasRemediation() {
			fmt.Fprintf(&b, "- Remediation: %s\n", mdEscape(f.Remediation))
		}
		b.WriteString("\n")
	}

	if a := report.Analysis; a != nil {
		fmt.Fprintf(&b, "## AI analysis (%s)\n\n", a.Provider)
		if a.Failed() {
			fmt.Fprintf(&b, "Analysis failed: %s\n", mdEscape(a.Analysis.Error))
			return []byte(b.String()), nil
		}
		fmt.Fprintf(&b, "%s\n\n", mdEscape(a.SummaryText()))
		for i, item := range a.Analysis.PrioritizedRemediation {
			fmt.Fprintf(&b, "%d. **[%s]** %s\n", i+1, item.Priority.Label(), mdEscape(item.Action))
			if item.Description != "" {
				fmt.Fprintf(&b, "   %s\n", mdEscape(item.Description))
			}
			if item.SampleCode != nil && item.SampleCode.Code != "" {
				fmt.Fprintf(&b, "\n   ```%s\n", item.SampleCode.Language)
				for _, line := range strings.Split(strings.TrimRight(item.SampleCode.Code, "\n"), "\n") {
					fmt.Fprintf(&b, "   %s\n", line)
				}
				b.WriteString("   ```\n")
			}
			for _, ref := range item.References {
				fmt.Fprintf(&b, "   - <%s>\n", ref)
			}
		}
		if len(a.Analysis.AdditionalRecommendations) > 0 {
			b.WriteString("\n### Additional recommendations\n\n")
			for _, r := range a.Analysis.AdditionalRecommendations {
				fmt.Fprintf(&b, "- %s\n", mdEscape(r))
			}
		}
	}
	return []byte(b.String()), nil
}

func (f *MarkdownFormatter) FileExtension() string { return "md" }

var mdReplacer = strings.NewReplacer("|", `\|`, "<", "&lt;", ">", "&gt;")

func mdEscape(s string) string {
	return mdReplacer.Replace(strings.TrimSpace(s))
}

type HTMLFormatter struct {
	templates *TemplateManager
}

func (f *HTMLFormatter) Format(report *ScanReport) ([]byte, error) {
	tpl, ok := f.templates.Get(htmlReportTemplate)
	if !ok {
		return nil, fmt.Errorf("template %s not registered", htmlReportTemplate)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("execute html template: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *HTMLFormatter) FileExtension() string { return "html" }
