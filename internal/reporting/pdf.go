package reporting

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

var (
	colorPrimary     = [3]int{30, 58, 95}
	colorTextDark    = [3]int{44, 62, 80}
	colorTextMuted   = [3]int{127, 140, 141}
	colorBackground  = [3]int{248, 249, 250}
	colorTableHeader = [3]int{30, 58, 95}
	colorTableAlt    = [3]int{241, 245, 249}
	colorGridLine    = [3]int{220, 220, 220}
)

var severityColors = map[models.Severity][3]int{
	models.SeverityCritical: {192, 57, 43},
	models.SeverityHigh:     {231, 76, 60},
	models.SeverityMedium:   {241, 196, 15},
	models.SeverityLow:      {52, 152, 219},
	models.SeverityInfo:     {149, 165, 166},
}

func severityColor(s models.Severity) [3]int {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return severityColors[models.SeverityInfo]
}

type PDFFormatter struct{}

func NewPDFFormatter() *PDFFormatter {
	return &PDFFormatter{}
}

func (g *PDFFormatter) FileExtension() string { return "pdf" }

func (g *PDFFormatter) Format(report *ScanReport) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	g.writeCoverPage(pdf, tr, report)

	pdf.AddPage()
	g.addPageHeader(pdf, tr, report, "Summary")
	g.writeSummary(pdf, report)
	g.writeRecommendations(pdf, tr, report)

	if len(report.Findings) > 0 {
		pdf.AddPage()
		g.addPageHeader(pdf, tr, report, "Findings")
		g.writeFindings(pdf, tr, report)
	}

	if report.Analysis != nil {
		pdf.AddPage()
		g.addPageHeader(pdf, tr, report, "AI Analysis")
		g.writeAnalysis(pdf, tr, report.Analysis)
	}

	g.addPageNumbers(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *PDFFormatter) writeCoverPage(pdf *fpdf.Fpdf, tr func(string) string, report *ScanReport) {
	pdf.AddPage()
	pageWidth, pageHeight := pdf.GetPageSize()

	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, 0, pageWidth, 8, "F")

	pdf.SetY(60)
	pdf.SetFont("Arial", "B", 28)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 12, "Security Scan Report", "", 1, "C", false, 0, "")

	pdf.SetY(100)
	boxX := 30.0
	boxWidth := pageWidth - 60
	pdf.SetFillColor(colorBackground[0], colorBackground[1], colorBackground[2])
	pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
	pdf.RoundedRect(boxX, pdf.GetY(), boxWidth, 55, 3, "1234", "FD")

	pdf.SetY(pdf.GetY() + 10)
	pdf.SetFont("Arial", "B", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 7, "TARGET", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 10, tr(utils.Truncate(report.Metadata.TargetURL, 70)), "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 7, fmt.Sprintf("Scan %s  |  %s", report.Metadata.ScanID, report.Metadata.Status.Label()), "", 1, "C", false, 0, "")

	level := report.Summary.RiskLevel
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 12, fmt.Sprintf("Risk: %.2f / 10 (%s)", report.Summary.RiskScore, level), "", 1, "C", false, 0, "")

	pdf.SetY(pageHeight - 50)
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.UTC().Format("January 2, 2006 at 15:04 UTC")), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Findings: %d", report.Summary.TotalFindings), "", 1, "C", false, 0, "")

	pdf.SetFillColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.Rect(0, pageHeight-8, pageWidth, 8, "F")
}

func (g *PDFFormatter) addPageHeader(pdf *fpdf.Fpdf, tr func(string) string, report *ScanReport, section string) {
	pageWidth, _ := pdf.GetPageSize()

	pdf.SetDrawColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.SetLineWidth(0.5)
	pdf.Line(20, 15, pageWidth-20, 15)

	pdf.SetY(18)
	pdf.SetFont("Arial", "B", 9)
	pdf.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
	pdf.CellFormat(0, 5, "SECURITY SCAN REPORT", "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 5, tr(utils.Truncate(report.Metadata.TargetURL, 60)), "", 1, "R", false, 0, "")

	pdf.SetY(30)
	pdf.SetFont("Arial", "B", 18)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 10, section, "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

// writeSummary draws one horizontal bar per severity, zero counts included.
func (g *PDFFormatter) writeSummary(pdf *fpdf.Fpdf, report *ScanReport) {
	pageWidth, _ := pdf.GetPageSize()
	counts := report.Summary.Counts

	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Findings by Severity", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	maxCount := 1
	for _, s := range models.AllSeverities() {
		if n := counts.Get(s); n > maxCount {
			maxCount = n
		}
	}

	labelWidth := 30.0
	countWidth := 15.0
	barMax := pageWidth - 40 - labelWidth - countWidth
	for _, s := range models.AllSeverities() {
		n := counts.Get(s)
		y := pdf.GetY()

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(labelWidth, 7, s.Label(), "", 0, "L", false, 0, "")

		c := severityColor(s)
		pdf.SetFillColor(c[0], c[1], c[2])
		if n > 0 {
			pdf.Rect(20+labelWidth, y+1, barMax*float64(n)/float64(maxCount), 5, "F")
		}
		pdf.SetX(20 + labelWidth + barMax)
		pdf.CellFormat(countWidth, 7, fmt.Sprintf("%d", n), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	m := report.Metadata
	line := fmt.Sprintf("Total findings: %d   Started: %s", counts.All, m.StartedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if m.Duration != "" {
		line += "   Duration: " + m.Duration
	}
	pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (g *PDFFormatter) writeRecommendations(pdf *fpdf.Fpdf, tr func(string) string, report *ScanReport) {
	if len(report.Recommendations) == 0 {
		return
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.CellFormat(0, 8, "Recommendations", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, rec := range report.Recommendations {
		c := severityColor(rec.Severity)
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.CellFormat(20, 6, rec.Severity.Label(), "", 0, "L", false, 0, "")
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.MultiCell(0, 6, tr(rec.Title), "", "L", false)

		if rec.Remediation != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
			pdf.SetX(40)
			pdf.MultiCell(0, 5, tr(rec.Remediation), "", "L", false)
		}
		pdf.Ln(2)
	}
}

func (g *PDFFormatter) writeFindings(pdf *fpdf.Fpdf, tr func(string) string, report *ScanReport) {
	colWidths := []float64{20, 70, 35, 45}
	headers := []string{"Severity", "Title", "Type", "Location"}

	writeHeader := func() {
		pdf.SetFillColor(colorTableHeader[0], colorTableHeader[1], colorTableHeader[2])
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 8)
		for i, h := range headers {
			pdf.CellFormat(colWidths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	writeHeader()

	pdf.SetFont("Arial", "", 8)
	_, pageHeight := pdf.GetPageSize()
	fill := false
	for i := range report.Findings {
		f := &report.Findings[i]
		if pdf.GetY() > pageHeight-35 {
			pdf.AddPage()
			writeHeader()
			pdf.SetFont("Arial", "", 8)
		}
		if fill {
			pdf.SetFillColor(colorTableAlt[0], colorTableAlt[1], colorTableAlt[2])
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		c := severityColor(f.Severity)
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.CellFormat(colWidths[0], 6, f.Severity.Label(), "1", 0, "C", fill, 0, "")

		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(colWidths[1], 6, tr(utils.Truncate(f.Title, 48)), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[2], 6, tr(utils.Truncate(f.Type, 22)), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(colWidths[3], 6, tr(utils.Truncate(f.Location, 30)), "1", 1, "L", fill, 0, "")
		fill = !fill
	}
}

func (g *PDFFormatter) writeAnalysis(pdf *fpdf.Fpdf, tr func(string) string, a *models.AIAnalysis) {
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
	pdf.CellFormat(0, 6, fmt.Sprintf("Provider: %s   Model: %s", a.Provider, a.Model), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	if a.Failed() {
		c := severityColor(models.SeverityCritical)
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.MultiCell(0, 6, tr("Analysis failed: "+a.Analysis.Error), "", "L", false)
		return
	}

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
	pdf.MultiCell(0, 6, tr(a.SummaryText()), "", "L", false)
	pdf.Ln(4)

	for i, item := range a.Analysis.PrioritizedRemediation {
		c := severityColor(item.Priority)
		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(c[0], c[1], c[2])
		pdf.CellFormat(0, 6, fmt.Sprintf("%d. [%s]", i+1, item.Priority.Label()), "", 1, "L", false, 0, "")
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.MultiCell(0, 6, tr(item.Action), "", "L", false)
		if item.Description != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 5, tr(item.Description), "", "L", false)
		}
		if item.SampleCode != nil && item.SampleCode.Code != "" {
			pdf.SetFont("Courier", "", 8)
			pdf.SetFillColor(colorBackground[0], colorBackground[1], colorBackground[2])
			pdf.MultiCell(0, 4, tr(item.SampleCode.Code), "1", "L", true)
		}
		pdf.Ln(3)
	}

	if len(a.Analysis.AdditionalRecommendations) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(colorTextDark[0], colorTextDark[1], colorTextDark[2])
		pdf.CellFormat(0, 8, "Additional Recommendations", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, r := range a.Analysis.AdditionalRecommendations {
			pdf.MultiCell(0, 5, tr("- "+r), "", "L", false)
		}
	}
}

func (g *PDFFormatter) addPageNumbers(pdf *fpdf.Fpdf) {
	pdf.SetAutoPageBreak(false, 0)
	totalPages := pdf.PageCount()

	for i := 2; i <= totalPages; i++ {
		pdf.SetPage(i)
		pageWidth, pageHeight := pdf.GetPageSize()

		pdf.SetY(pageHeight - 15)
		pdf.SetFont("Arial", "", 8)
		pdf.SetTextColor(colorTextMuted[0], colorTextMuted[1], colorTextMuted[2])
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of %d", i-1, totalPages-1), "", 0, "C", false, 0, "")

		pdf.SetDrawColor(colorGridLine[0], colorGridLine[1], colorGridLine[2])
		pdf.SetLineWidth(0.3)
		pdf.Line(20, pageHeight-20, pageWidth-20, pageHeight-20)
	}
}
