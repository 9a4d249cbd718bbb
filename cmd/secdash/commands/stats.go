package commands

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bl4ck0w1/secdash/internal/reporting"
)

type storageStatser interface {
	GetStorageStats() (map[string]interface{}, error)
}

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show local state and report statistics",
		Long:  `Show statistics about the local state store, cached analyses, generated reports and client limits.`,
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	r := newRenderer(cmd)

	storageStats := map[string]interface{}{}
	if s, ok := sess.store.(storageStatser); ok {
		if storageStats, err = s.GetStorageStats(); err != nil {
			return fmt.Errorf("failed to get storage statistics: %w", err)
		}
	}
	if keys, err := sess.store.Keys(); err == nil {
		cached := 0
		for _, k := range keys {
			if strings.HasPrefix(k, "analysis_") {
				cached++
			}
		}
		storageStats["cached_analyses"] = cached
	}
	token, _ := sess.tokens.Token()
	storageStats["logged_in"] = token != ""
	r.KeyValues("Local State", storageStats)

	fmt.Fprintln(cmd.OutOrStdout())
	gen, err := reporting.NewReportGenerator(reportConfig(), "", logrus.StandardLogger())
	if err != nil {
		return fmt.Errorf("failed to initialize report generator: %w", err)
	}
	reportStats, err := gen.GetReportStats()
	if err != nil {
		return fmt.Errorf("failed to get report statistics: %w", err)
	}
	r.KeyValues("Reports", reportStats)

	fmt.Fprintln(cmd.OutOrStdout())
	clientStats := sess.client.Limiter().GetStats()
	clientStats["api_url"] = sess.client.BaseURL()
	r.KeyValues("API Client", clientStats)
	return r.Err()
}
