package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Launch and manage security scans",
		Long: `Launch security scans against a website and manage existing scans.
All scanning runs on the backend; these commands drive it over the API.`,
	}
	cmd.AddCommand(newScanListCommand())
	cmd.AddCommand(newScanGetCommand())
	cmd.AddCommand(newScanCreateCommand())
	cmd.AddCommand(newScanDeleteCommand())
	cmd.AddCommand(newScanStopCommand())
	cmd.AddCommand(newScanExportCommand())
	cmd.AddCommand(newScanWatchCommand())
	return cmd
}

func newScanListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scans",
		Args:  cobra.NoArgs,
		RunE:  runScanList,
	}
	cmd.Flags().String("status", "", "Only show scans with this status (pending, running, completed, failed, cancelled)")
	addOutputFlag(cmd)
	return cmd
}

func newScanGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <scan-id>",
		Short: "Show one scan",
		Args:  cobra.ExactArgs(1),
		RunE:  runScanGet,
	}
	addOutputFlag(cmd)
	return cmd
}

func newScanCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <url>",
		Short: "Start a new scan",
		Long: `Start a new scan of the given URL. The URL must start with http:// or https://.
The scan type defaults to the default_scan_type setting.`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCreate,
	}
	cmd.Flags().StringP("type", "t", "", fmt.Sprintf("Scan type (%s)", strings.Join(models.ScanTypes, ", ")))
	cmd.Flags().StringToString("option", nil, "Extra scan option as key=value (repeatable)")
	cmd.Flags().BoolP("wait", "w", false, "Watch the scan until it finishes")
	return cmd
}

func newScanDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <scan-id>",
		Short: "Delete a scan and its findings",
		Args:  cobra.ExactArgs(1),
		RunE:  runScanDelete,
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newScanStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <scan-id>",
		Short: "Stop a running scan",
		Args:  cobra.ExactArgs(1),
		RunE:  runScanStop,
	}
}

func newScanExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <scan-id>",
		Short: "Download the server-rendered report of a scan",
		Long: `Download the report the backend renders for a scan. Use "-" as the
destination to write it to stdout. For reports rendered locally see "secdash report".`,
		Args: cobra.ExactArgs(1),
		RunE: runScanExport,
	}
	cmd.Flags().StringP("format", "f", "json", "Report format requested from the server (json, csv, pdf, html)")
	cmd.Flags().String("dest", "", "Destination file or directory (default: server-provided name in the current directory)")
	return cmd
}

func newScanWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <scan-id>",
		Short: "Follow a scan until it finishes",
		Long: `Poll a scan until it reaches a terminal state, showing progress.
With --metrics-addr the progress and findings are also exposed on /metrics.`,
		Args: cobra.ExactArgs(1),
		RunE: runScanWatch,
	}
	cmd.Flags().Duration("interval", 2*time.Second, "Polling interval")
	cmd.Flags().Duration("timeout", 30*time.Minute, "Give up after this long")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while watching (e.g. :9090)")
	_ = viper.BindPFlag("watch.interval", cmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag("watch.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func runScanList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	scans, err := sess.client.ListScans(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scans: %w", err)
	}

	if status, _ := cmd.Flags().GetString("status"); status != "" {
		want := models.ScanStatus(strings.ToLower(status))
		filtered := scans[:0:0]
		for _, s := range scans {
			if s.Status == want {
				filtered = append(filtered, s)
			}
		}
		scans = filtered
	}

	if format != outputTable {
		return printStructured(cmd.OutOrStdout(), format, scans)
	}
	r := newRenderer(cmd)
	r.ScanList(scans)
	return r.Err()
}

func runScanGet(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	scan, err := sess.client.GetScan(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get scan: %w", err)
	}
	if format != outputTable {
		return printStructured(cmd.OutOrStdout(), format, scan)
	}
	r := newRenderer(cmd)
	r.ScanDetail(scan)
	return r.Err()
}

func runScanCreate(cmd *cobra.Command, args []string) error {
	target := strings.TrimSpace(args[0])
	if err := utils.ValidateTargetURL(target); err != nil {
		return err
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	scanType, _ := cmd.Flags().GetString("type")
	if scanType == "" {
		scanType = sess.prefs.DefaultScanType
	}
	if scanType == "" {
		scanType = models.ScanTypeQuick
	}
	if !validScanType(scanType) {
		return fmt.Errorf("invalid scan type %q (valid: %s)", scanType, strings.Join(models.ScanTypes, ", "))
	}

	options := scanOptions(sess.prefs)
	extra, _ := cmd.Flags().GetStringToString("option")
	for k, v := range extra {
		options[k] = v
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	scan, err := sess.client.CreateScan(ctx, models.CreateScanRequest{
		TargetURL: target,
		ScanType:  scanType,
		Options:   options,
	})
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	logrus.Infof("Scan %s created for %s", scan.ID, scan.TargetURL)
	fmt.Fprintf(cmd.OutOrStdout(), "Scan started with ID: %s\n", scan.ID)

	if wait, _ := cmd.Flags().GetBool("wait"); wait {
		return watchScan(ctx, cmd, sess, scan.ID, 2*time.Second, "")
	}
	return nil
}

// scanOptions carries the scanner preferences from settings into the request.
func scanOptions(s models.Settings) map[string]interface{} {
	opts := map[string]interface{}{
		"passive": s.EnablePassiveScan,
		"active":  s.EnableActiveScan,
	}
	if s.MaxScanDuration > 0 {
		opts["max_duration"] = s.MaxScanDuration
	}
	if s.UserAgent != "" {
		opts["user_agent"] = s.UserAgent
	}
	return opts
}

func validScanType(t string) bool {
	for _, st := range models.ScanTypes {
		if st == t {
			return true
		}
	}
	return false
}

func runScanDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := confirm(cmd, fmt.Sprintf("Delete scan %s and all of its findings?", id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := sess.client.DeleteScan(ctx, id); err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	if err := sess.analysisCache().Invalidate(id); err != nil {
		logrus.Debugf("Failed to drop cached analysis for %s: %v", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scan %s deleted\n", id)
	return nil
}

func runScanStop(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := sess.client.StopScan(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to stop scan: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for scan %s\n", args[0])
	return nil
}

func runScanExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	dest, _ := cmd.Flags().GetString("dest")

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	exp, err := sess.client.ExportReport(ctx, args[0], format)
	if err != nil {
		return fmt.Errorf("failed to export report: %w", err)
	}

	if dest == "-" {
		_, err := cmd.OutOrStdout().Write(exp.Data)
		return err
	}

	path := filepath.Base(exp.Filename)
	if dest != "" {
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			path = filepath.Join(dest, path)
		} else {
			path = dest
		}
	}
	if err := utils.SafeWriteFile(path, exp.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s (%s)\n", path, utils.HumanizeBytes(int64(len(exp.Data))))
	return nil
}

func runScanWatch(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if timeout := viper.GetDuration("watch.timeout"); timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, timeout)
		defer tcancel()
	}
	return watchScan(ctx, cmd, sess, args[0], viper.GetDuration("watch.interval"), viper.GetString("metrics.addr"))
}

func watchScan(ctx context.Context, cmd *cobra.Command, sess *session, id string, interval time.Duration, metricsAddr string) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if metricsAddr != "" {
		go func() {
			if err := sess.metrics.StartServerWithContext(ctx, metricsAddr); err != nil {
				logrus.Warnf("Metrics server stopped: %v", err)
			}
		}()
		logrus.Infof("Serving metrics on %s/metrics", metricsAddr)
	}

	out := cmd.OutOrStdout()
	quiet := viper.GetBool("quiet")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		scan, err := sess.client.GetScan(ctx, id)
		if err != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("failed to get scan status: %w", err)
		}
		recordScanMetrics(sess.metrics, scan)

		if !quiet {
			fmt.Fprintf(out, "\r%s", progressLine(scan))
		}
		if scan.Status.Terminal() {
			fmt.Fprintln(out)
			r := newRenderer(cmd)
			r.ScanDetail(scan)
			if err := r.Err(); err != nil {
				return err
			}
			if scan.Status == models.ScanStatusFailed {
				return fmt.Errorf("scan %s failed", id)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("gave up waiting for scan %s", id)
			}
			logrus.Info("Stopped watching; the scan keeps running on the server")
			return nil
		case <-ticker.C:
		}
	}
}

const progressWidth = 50

func progressLine(scan *models.Scan) string {
	pct := 0.0
	switch {
	case scan.Status == models.ScanStatusCompleted:
		pct = 100
	case scan.Progress != nil:
		pct = *scan.Progress
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	done := int(pct / 100 * progressWidth)
	return fmt.Sprintf("[%s%s] %-9s %5.1f%%",
		strings.Repeat("=", done),
		strings.Repeat(" ", progressWidth-done),
		scan.Status.Label(),
		pct,
	)
}

func recordScanMetrics(m *utils.MetricsCollector, scan *models.Scan) {
	progress := 0.0
	if scan.Progress != nil {
		progress = *scan.Progress / 100
	}
	if scan.Status == models.ScanStatusCompleted {
		progress = 1
	}
	m.SetGauge(utils.MetricScanProgress, progress, prometheus.Labels{"scan_id": scan.ID})

	counts := findings.Aggregate(scan.Findings)
	for _, sev := range models.AllSeverities() {
		m.SetGauge(utils.MetricScanFindings, float64(counts.Get(sev)), prometheus.Labels{
			"scan_id":  scan.ID,
			"severity": string(sev),
		})
	}
}
