package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/secdash/internal/reporting"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

func NewReportCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <scan-id>",
		Short: "Generate local reports for a scan",
		Long: `Render a scan, its findings and its latest AI analysis into report files.
Formats: json, yaml, csv, md, txt, html, pdf. Use --stdout to print a single
format instead of writing files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args, version)
		},
	}
	cmd.Flags().StringSliceP("formats", "f", nil, "Report formats (default: report.default_format)")
	cmd.Flags().String("output-dir", "", "Directory for report files (default: report.output_dir)")
	cmd.Flags().Bool("compress", false, "Gzip report files")
	cmd.Flags().Bool("no-analysis", false, "Leave the AI analysis out")
	cmd.Flags().Bool("stdout", false, "Print the report instead of writing a file")
	_ = viper.BindPFlag("report.output_dir", cmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("report.compress", cmd.Flags().Lookup("compress"))
	return cmd
}

func reportConfig() reporting.ReportConfig {
	return reporting.ReportConfig{
		OutputDir:       viper.GetString("report.output_dir"),
		DefaultFormat:   viper.GetString("report.default_format"),
		CompressReports: viper.GetBool("report.compress"),
		MaxReportAge:    viper.GetDuration("report.max_age"),
		TemplatesDir:    viper.GetString("report.templates_dir"),
		RiskWeights:     riskWeights(),
	}
}

func riskWeights() map[string]float64 {
	raw := viper.GetStringMap("report.risk_weights")
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		}
	}
	return out
}

func runReport(cmd *cobra.Command, args []string, version string) error {
	scanID := args[0]
	formats, _ := cmd.Flags().GetStringSlice("formats")
	toStdout, _ := cmd.Flags().GetBool("stdout")
	if toStdout && len(formats) > 1 {
		return fmt.Errorf("--stdout takes a single format")
	}

	gen, err := reporting.NewReportGenerator(reportConfig(), version, logrus.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to initialize report generator: %w", err)
	}
	if len(formats) == 0 {
		formats = []string{viper.GetString("report.default_format")}
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	scan, items, err := loadScanForReport(ctx, sess, scanID)
	if err != nil {
		return err
	}
	var analysis *models.AIAnalysis
	if skip, _ := cmd.Flags().GetBool("no-analysis"); !skip {
		analysis = latestAnalysis(ctx, sess, scanID)
	}

	report := gen.Build(time.Now(), *scan, items, analysis)

	if toStdout {
		data, _, err := gen.Render(report, formats[0])
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	written := 0
	for _, format := range formats {
		format = strings.ToLower(strings.TrimSpace(format))
		if format == "" {
			continue
		}
		path, err := gen.Export(report, format)
		if err != nil {
			logrus.Warnf("Failed to generate %s report: %v", format, err)
			continue
		}
		written++
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s report: %s\n", format, path)
	}
	if written == 0 {
		return fmt.Errorf("no report generated (supported formats: %s)", strings.Join(gen.SupportedFormats(), ", "))
	}

	if removed, err := gen.CleanupOldReports(time.Now()); err != nil {
		logrus.Warnf("Report cleanup failed: %v", err)
	} else if removed > 0 {
		logrus.Infof("Removed %d expired reports", removed)
	}
	return nil
}

func loadScanForReport(ctx context.Context, sess *session, scanID string) (*models.Scan, []models.Finding, error) {
	scan, err := sess.client.GetScan(ctx, scanID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get scan: %w", err)
	}
	if scan.Findings != nil {
		return scan, scan.Findings, nil
	}
	items, err := sess.client.GetScanFindings(ctx, scanID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load findings: %w", err)
	}
	return scan, items, nil
}

// latestAnalysis prefers the local cache; a missing or failing analysis
// leaves the section out of the report.
func latestAnalysis(ctx context.Context, sess *session, scanID string) *models.AIAnalysis {
	cache := sess.analysisCache()
	if cached, err := cache.Get(scanID); err == nil && cached != nil {
		return cached
	}
	analysis, err := sess.client.GetAnalysis(ctx, scanID)
	if err != nil {
		logrus.Warnf("AI analysis unavailable: %v", err)
		return nil
	}
	if analysis != nil {
		if analysis.ScanID == "" {
			analysis.ScanID = scanID
		}
		if err := cache.Put(analysis); err != nil {
			logrus.Debugf("Failed to cache analysis: %v", err)
		}
	}
	return analysis
}
