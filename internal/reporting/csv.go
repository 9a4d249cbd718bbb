package reporting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CSVFormatter writes a sectioned CSV: commented header rows, a severity
// summary, then one row per finding.
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

func (g *CSVFormatter) Format(report *ScanReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := g.writeHeader(w, report); err != nil {
		return nil, fmt.Errorf("write CSV header section: %w", err)
	}
	if err := g.writeSummary(w, report); err != nil {
		return nil, fmt.Errorf("write CSV summary section: %w", err)
	}
	if err := g.writeFindings(w, report); err != nil {
		return nil, fmt.Errorf("write CSV findings section: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV write error: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *CSVFormatter) FileExtension() string { return "csv" }

func (g *CSVFormatter) writeHeader(w *csv.Writer, report *ScanReport) error {
	m := report.Metadata
	rows := [][]string{
		{"# Security Scan Report"},
		{"# Target:", m.TargetURL},
		{"# Scan ID:", m.ScanID},
		{"# Status:", string(m.Status)},
		{"# Started:", m.StartedAt.UTC().Format(time.RFC3339)},
		{"# Generated:", report.GeneratedAt.UTC().Format(time.RFC3339)},
		{"# Risk Score:", strconv.FormatFloat(report.Summary.RiskScore, 'f', 2, 64), report.Summary.RiskLevel},
		{""},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write header row %q: %w", row[0], err)
		}
	}
	return nil
}

func (g *CSVFormatter) writeSummary(w *csv.Writer, report *ScanReport) error {
	if err := w.Write([]string{"# SUMMARY"}); err != nil {
		return fmt.Errorf("write summary section heading: %w", err)
	}
	if err := w.Write([]string{"Severity", "Count"}); err != nil {
		return fmt.Errorf("write summary column headers: %w", err)
	}
	c := report.Summary.Counts
	rows := [][]string{
		{"Critical", strconv.Itoa(c.Critical)},
		{"High", strconv.Itoa(c.High)},
		{"Medium", strconv.Itoa(c.Medium)},
		{"Low", strconv.Itoa(c.Low)},
		{"Info", strconv.Itoa(c.Info)},
		{"Total", strconv.Itoa(c.All)},
		{""},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write summary row %q: %w", row[0], err)
		}
	}
	return nil
}

func (g *CSVFormatter) writeFindings(w *csv.Writer, report *ScanReport) error {
	if err := w.Write([]string{"# FINDINGS"}); err != nil {
		return fmt.Errorf("write findings section heading: %w", err)
	}
	header := []string{"ID", "Severity", "Type", "Title", "Description", "Location", "OWASP", "CVE", "Remediation"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write findings column headers: %w", err)
	}
	for i := range report.Findings {
		f := &report.Findings[i]
		row := []string{
			f.ID,
			string(f.Severity),
			f.Type,
			csvSafe(f.Title),
			csvSafe(f.Description),
			csvSafe(f.Location),
			f.OWASPLabel(),
			f.CVEID,
			csvSafe(f.Remediation),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write finding %s: %w", f.ID, err)
		}
	}
	return nil
}

// csvSafe neutralises cells a spreadsheet would evaluate as formulas.
func csvSafe(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return strings.TrimSpace(s)
}
