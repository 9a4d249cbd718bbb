package reporting

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

type Formatter interface {
	Format(report *ScanReport) ([]byte, error)
	FileExtension() string
}

type ReportConfig struct {
	OutputDir       string             `yaml:"output_dir" json:"output_dir" mapstructure:"output_dir"`
	DefaultFormat   string             `yaml:"default_format" json:"default_format" mapstructure:"default_format"`
	CompressReports bool               `yaml:"compress" json:"compress" mapstructure:"compress"`
	MaxReportAge    time.Duration      `yaml:"max_age" json:"max_age" mapstructure:"max_age"`
	TemplatesDir    string             `yaml:"templates_dir" json:"templates_dir" mapstructure:"templates_dir"`
	RiskWeights     map[string]float64 `yaml:"risk_weights" json:"risk_weights" mapstructure:"risk_weights"`
}

type ScanReport struct {
	Metadata        ReportMetadata           `json:"metadata" yaml:"metadata"`
	Summary         ReportSummary            `json:"summary" yaml:"summary"`
	Findings        []models.Finding         `json:"findings" yaml:"findings"`
	Recommendations []SecurityRecommendation `json:"recommendations" yaml:"recommendations"`
	Analysis        *models.AIAnalysis       `json:"ai_analysis,omitempty" yaml:"ai_analysis,omitempty"`
	GeneratedAt     time.Time                `json:"generated_at" yaml:"generated_at"`
}

type ReportMetadata struct {
	ScanID      string            `json:"scan_id" yaml:"scan_id"`
	TargetURL   string            `json:"target_url" yaml:"target_url"`
	ScanType    string            `json:"scan_type,omitempty" yaml:"scan_type,omitempty"`
	Status      models.ScanStatus `json:"status" yaml:"status"`
	StartedAt   time.Time         `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Duration    string            `json:"duration,omitempty" yaml:"duration,omitempty"`
	GeneratedBy string            `json:"generated_by" yaml:"generated_by"`
}

type ReportSummary struct {
	TotalFindings int              `json:"total_findings" yaml:"total_findings"`
	Counts        findings.Counts  `json:"counts" yaml:"counts"`
	Chart         []findings.Slice `json:"chart" yaml:"chart"`
	RiskScore     float64          `json:"risk_score" yaml:"risk_score"`
	RiskLevel     string           `json:"risk_level" yaml:"risk_level"`
}

type SecurityRecommendation struct {
	Title       string          `json:"title" yaml:"title"`
	Category    string          `json:"category" yaml:"category"`
	Severity    models.Severity `json:"severity" yaml:"severity"`
	Affected    []string        `json:"affected" yaml:"affected"`
	Remediation string          `json:"remediation" yaml:"remediation"`
	References  []string        `json:"references,omitempty" yaml:"references,omitempty"`
}

type ReportGenerator struct {
	formatters  map[string]Formatter
	logger      *logrus.Logger
	mu          sync.RWMutex
	config      ReportConfig
	templateMgr *TemplateManager
	riskScorer  *RiskScorer
	version     string
}

func NewReportGenerator(config ReportConfig, version string, logger *logrus.Logger) (*ReportGenerator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if config.OutputDir == "" {
		config.OutputDir = "./reports"
	}
	if config.DefaultFormat == "" {
		config.DefaultFormat = "json"
	}

	tm, err := NewDefaultTemplateManager()
	if err != nil {
		return nil, err
	}
	if config.TemplatesDir != "" {
		if err := tm.LoadDir(config.TemplatesDir, templateFuncs()); err != nil {
			return nil, fmt.Errorf("failed to load report templates: %w", err)
		}
	}

	rg := &ReportGenerator{
		formatters:  make(map[string]Formatter),
		logger:      logger,
		config:      config,
		templateMgr: tm,
		riskScorer:  NewRiskScorerWithWeights(config.RiskWeights),
		version:     version,
	}

	rg.RegisterFormatter("json", &JSONFormatter{})
	rg.RegisterFormatter("yaml", &YAMLFormatter{})
	rg.RegisterFormatter("csv", NewCSVFormatter())
	rg.RegisterFormatter("md", &MarkdownFormatter{})
	rg.RegisterFormatter("txt", &TextFormatter{})
	rg.RegisterFormatter("html", &HTMLFormatter{templates: tm})
	rg.RegisterFormatter("pdf", NewPDFFormatter())

	return rg, nil
}

func (rg *ReportGenerator) RegisterFormatter(name string, formatter Formatter) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.formatters[name] = formatter
}

func (rg *ReportGenerator) SupportedFormats() []string {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	names := make([]string, 0, len(rg.formatters))
	for k := range rg.formatters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Build assembles a report for scan. The findings argument wins over
// scan.Findings when non-nil; analysis may be nil.
func (rg *ReportGenerator) Build(now time.Time, scan models.Scan, items []models.Finding, analysis *models.AIAnalysis) *ScanReport {
	if items == nil {
		items = scan.Findings
	}
	sorted := findings.SortBySeverity(items)
	counts := findings.Aggregate(sorted)
	score := rg.riskScorer.OverallScore(sorted)

	meta := ReportMetadata{
		ScanID:      scan.ID,
		TargetURL:   scan.TargetURL,
		ScanType:    scan.ScanType(),
		Status:      scan.Status,
		StartedAt:   scan.CreatedAt,
		CompletedAt: scan.CompletedAt,
		GeneratedBy: "secdash " + rg.version,
	}
	if d := scan.Duration(); d > 0 {
		meta.Duration = utils.HumanizeDuration(d)
	}

	return &ScanReport{
		Metadata: meta,
		Summary: ReportSummary{
			TotalFindings: counts.All,
			Counts:        counts,
			Chart:         findings.ChartSlices(counts),
			RiskScore:     score,
			RiskLevel:     RiskLevel(score),
		},
		Findings:        sorted,
		Recommendations: buildRecommendations(sorted),
		Analysis:        analysis,
		GeneratedAt:     now,
	}
}

// buildRecommendations groups critical and high findings by OWASP category
// (or type when uncategorised).
func buildRecommendations(items []models.Finding) []SecurityRecommendation {
	type group struct {
		rec  SecurityRecommendation
		seen map[string]struct{}
	}
	groups := map[string]*group{}
	var order []string

	for _, f := range items {
		sev := models.ParseSeverity(string(f.Severity))
		if sev != models.SeverityCritical && sev != models.SeverityHigh {
			continue
		}
		key := f.OWASPLabel()
		if key == "" {
			key = f.Type
		}
		if key == "" {
			key = "Uncategorised"
		}
		g, ok := groups[key]
		if !ok {
			g = &group{
				rec: SecurityRecommendation{
					Title:       recommendationTitle(f),
					Category:    key,
					Severity:    sev,
					Remediation: f.Remediation,
					References:  references(f),
				},
				seen: map[string]struct{}{},
			}
			groups[key] = g
			order = append(order, key)
		}
		if g.rec.Remediation == "" {
			g.rec.Remediation = f.Remediation
		}
		loc := f.Location
		if loc == "" {
			loc = f.Title
		}
		if _, dup := g.seen[loc]; !dup {
			g.seen[loc] = struct{}{}
			g.rec.Affected = append(g.rec.Affected, loc)
		}
	}

	recs := make([]SecurityRecommendation, 0, len(order))
	for _, k := range order {
		r := groups[k].rec
		if r.Remediation == "" {
			r.Remediation = "Investigate the affected locations and apply controls appropriate to the issue."
		}
		recs = append(recs, r)
	}
	return recs
}

func recommendationTitle(f models.Finding) string {
	if label := f.OWASPLabel(); label != "" {
		if idx := strings.Index(label, " - "); idx > 0 {
			return label[idx+3:]
		}
		return label
	}
	if f.Type != "" {
		return strings.ToUpper(f.Type[:1]) + f.Type[1:]
	}
	return "Security issue requires attention"
}

func references(f models.Finding) []string {
	var refs []string
	if link := f.GetCVELink(); link != "" {
		refs = append(refs, link)
	}
	if f.OWASPCategory != "" {
		refs = append(refs, "https://owasp.org/Top10/")
	}
	return refs
}

// Export renders report in format and writes it under OutputDir.
func (rg *ReportGenerator) Export(report *ScanReport, format string) (string, error) {
	data, format, err := rg.Render(report, format)
	if err != nil {
		return "", err
	}

	rg.mu.RLock()
	cfg := rg.config
	rg.mu.RUnlock()

	if err := utils.EnsureDir(cfg.OutputDir); err != nil {
		return "", fmt.Errorf("failed to ensure output dir: %w", err)
	}
	outPath := filepath.Join(cfg.OutputDir, rg.generateFilename(report, format))
	if err := utils.SafeWriteFile(outPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.CompressReports {
		compressedPath, cerr := compressReport(outPath)
		if cerr != nil {
			rg.logger.Warnf("Failed to compress report: %v", cerr)
		} else {
			_ = os.Remove(outPath)
			outPath = compressedPath
		}
	}

	rg.logger.Infof("Report exported to %s", outPath)
	return outPath, nil
}

// Render formats report without touching the filesystem.
func (rg *ReportGenerator) Render(report *ScanReport, format string) ([]byte, string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = rg.config.DefaultFormat
	}
	if format == "markdown" {
		format = "md"
	}
	rg.mu.RLock()
	formatter, exists := rg.formatters[format]
	rg.mu.RUnlock()
	if !exists {
		return nil, format, fmt.Errorf("unsupported report format: %s", format)
	}

	data, err := formatter.Format(report)
	if err != nil {
		return nil, format, fmt.Errorf("failed to format %s report: %w", format, err)
	}
	return data, format, nil
}

func (rg *ReportGenerator) generateFilename(report *ScanReport, format string) string {
	ext := format
	rg.mu.RLock()
	if f, ok := rg.formatters[format]; ok {
		ext = f.FileExtension()
	}
	rg.mu.RUnlock()

	host := report.Metadata.TargetURL
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	tstamp := report.GeneratedAt.UTC().Format("20060102_150405")
	return fmt.Sprintf("secdash_%s_%s_%s.%s", sanitizeFilename(host), sanitizeFilename(shortID(report.Metadata.ScanID)), tstamp, ext)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func compressReport(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dstPath := path + ".gz"
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	gw := gzip.NewWriter(dst)
	gw.Name = filepath.Base(path)
	gw.ModTime = time.Now()

	_, copyErr := io.Copy(gw, src)
	closeErr := gw.Close()
	if copyErr != nil {
		return "", copyErr
	}
	if closeErr != nil {
		return "", closeErr
	}
	return dstPath, nil
}

// CleanupOldReports removes report files older than MaxReportAge. A zero age
// disables cleanup.
func (rg *ReportGenerator) CleanupOldReports(now time.Time) (int, error) {
	rg.mu.RLock()
	maxAge := rg.config.MaxReportAge
	outputDir := rg.config.OutputDir
	rg.mu.RUnlock()

	if maxAge <= 0 {
		return 0, nil
	}
	files, err := os.ReadDir(outputDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), "secdash_") {
			continue
		}
		info, err := f.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(outputDir, f.Name())
		if err := os.Remove(p); err != nil {
			rg.logger.Warnf("Failed to remove old report %s: %v", f.Name(), err)
			continue
		}
		rg.logger.Debugf("Removed old report: %s", f.Name())
		removed++
	}
	return removed, nil
}

func (rg *ReportGenerator) GetReportStats() (map[string]interface{}, error) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	files, err := os.ReadDir(rg.config.OutputDir)
	if os.IsNotExist(err) {
		return map[string]interface{}{"total_reports": 0, "output_dir": rg.config.OutputDir}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	total := 0
	var size int64
	formatCounts := make(map[string]int)
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), "secdash_") {
			continue
		}
		total++
		if info, err := f.Info(); err == nil {
			size += info.Size()
		}
		name := strings.TrimSuffix(f.Name(), ".gz")
		if ext := filepath.Ext(name); ext != "" {
			formatCounts[ext[1:]]++
		}
	}
	return map[string]interface{}{
		"total_reports": total,
		"total_size_bytes": size,
		"output_dir":    rg.config.OutputDir,
		"formats":       formatCounts,
	}, nil
}

func sanitizeFilename(s string) string {
	var out []rune
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
