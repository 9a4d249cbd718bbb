package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bl4ck0w1/secdash/internal/dashboard"
	"github.com/bl4ck0w1/secdash/internal/findings"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

func NewFindingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings <scan-id>",
		Short: "Browse the findings of a scan",
		Long: `Browse the findings of a scan ten at a time, filtered by severity,
type and a case-insensitive search over title and description.`,
		Args: cobra.ExactArgs(1),
		RunE: runFindings,
	}
	cmd.Flags().StringP("severity", "s", findings.All, "Severity filter (all, critical, high, medium, low, info)")
	cmd.Flags().StringP("type", "t", findings.All, "Finding type filter (all or an exact type)")
	cmd.Flags().StringP("query", "q", "", "Search title and description")
	cmd.Flags().IntP("page", "p", 1, "Page number (10 findings per page)")
	cmd.Flags().Bool("details", false, "Print full details of the findings on the page")
	cmd.Flags().Bool("types", false, "List the finding types present in the scan and exit")
	addOutputFlag(cmd)
	return cmd
}

func runFindings(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	severity, _ := cmd.Flags().GetString("severity")
	severity = strings.ToLower(strings.TrimSpace(severity))
	if severity != findings.All && !models.Severity(severity).Valid() {
		return fmt.Errorf("invalid severity %q", severity)
	}
	typ, _ := cmd.Flags().GetString("type")
	query, _ := cmd.Flags().GetString("query")
	page, _ := cmd.Flags().GetInt("page")

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	items, err := sess.client.GetScanFindings(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load findings: %w", err)
	}

	if listTypes, _ := cmd.Flags().GetBool("types"); listTypes {
		for _, t := range findings.Types(items) {
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	}

	view := dashboard.NewFindingListView(items)
	view.SetCriteria(findings.Criteria{Severity: severity, Type: typ, Query: query})
	view.SetPage(page)

	if format != outputTable {
		return printStructured(cmd.OutOrStdout(), format, map[string]interface{}{
			"scan_id":  args[0],
			"criteria": view.Criteria(),
			"page":     view.CurrentPage(),
			"pages":    view.Pages(),
			"total":    view.Total(),
			"findings": view.Page(),
		})
	}

	r := newRenderer(cmd)
	if details, _ := cmd.Flags().GetBool("details"); details {
		r.FindingDetails(view.Page())
		return r.Err()
	}
	r.FindingsPage(view)
	return r.Err()
}
