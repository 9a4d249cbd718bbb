package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bl4ck0w1/secdash/internal/apierrors"
	"github.com/bl4ck0w1/secdash/internal/client"
	"github.com/bl4ck0w1/secdash/internal/dashboard"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

const detailFetchConcurrency = 4

func NewDashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show scan statistics, severity breakdown and 30-day history",
		Args:  cobra.NoArgs,
		RunE:  runDashboard,
	}
	addOutputFlag(cmd)
	return cmd
}

func runDashboard(cmd *cobra.Command, args []string) error {
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

	scans, providers, err := loadDashboard(ctx, sess.client)
	if err != nil {
		return err
	}

	summary := dashboard.BuildSummary(time.Now(), scans)
	summary.Providers = providers

	if format != outputTable {
		return printStructured(cmd.OutOrStdout(), format, summary)
	}
	r := newRenderer(cmd)
	r.Dashboard(summary)
	return r.Err()
}

// loadDashboard fetches scans and providers concurrently, then backfills
// findings for scans the list endpoint returned without them. Provider
// errors only disable the AI status line.
func loadDashboard(ctx context.Context, c *client.Client) ([]models.Scan, []models.AIProvider, error) {
	var (
		scans     []models.Scan
		providers []models.AIProvider
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scans, err = c.ListScans(gctx)
		if err != nil {
			return fmt.Errorf("failed to list scans: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		p, err := c.ListProviders(gctx)
		if err != nil {
			logrus.Warnf("AI providers unavailable: %v", err)
			return nil
		}
		providers = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(detailFetchConcurrency)
	for i := range scans {
		if scans[i].Findings != nil || scans[i].Status != models.ScanStatusCompleted {
			continue
		}
		i := i
		g.Go(func() error {
			items, err := c.GetScanFindings(gctx, scans[i].ID)
			if apierrors.IsNotFound(err) {
				// deleted since the list call
				logrus.Debugf("Scan %s disappeared before its findings were loaded", scans[i].ID)
				scans[i].Findings = []models.Finding{}
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load findings for scan %s: %w", scans[i].ID, err)
			}
			scans[i].Findings = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return scans, providers, nil
}
