package commands

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "AI remediation analysis of scan results",
		Long: `Request and view AI-generated remediation plans. Analyses run on the
backend with the selected provider and are cached locally per scan.`,
	}
	cmd.AddCommand(newAnalyzeRunCommand())
	cmd.AddCommand(newAnalyzeShowCommand())
	cmd.AddCommand(newAnalyzeFindingCommand())
	cmd.AddCommand(newAnalyzeProvidersCommand())
	cmd.AddCommand(newAnalyzeModelsCommand())
	cmd.AddCommand(newAnalyzePruneCommand())
	return cmd
}

func newAnalyzeRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scan-id>",
		Short: "Analyze a scan with an AI provider",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeRun,
	}
	cmd.Flags().String("provider", "", "AI provider (ollama, openai, openroute); defaults to the ai_provider setting")
	cmd.Flags().String("model", "", "Model name (provider default when empty)")
	cmd.Flags().Bool("refresh", false, "Ignore the cached analysis and ask again")
	addOutputFlag(cmd)
	return cmd
}

func newAnalyzeShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Show the latest analysis of a scan",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeShow,
	}
	addOutputFlag(cmd)
	return cmd
}

func newAnalyzeFindingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finding <finding-id>",
		Short: "Ask for remediation advice on a single finding",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeFinding,
	}
	cmd.Flags().String("provider", "", "AI provider; defaults to the ai_provider setting")
	addOutputFlag(cmd)
	return cmd
}

func newAnalyzeProvidersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List AI providers and their availability",
		Args:  cobra.NoArgs,
		RunE:  runAnalyzeProviders,
	}
	addOutputFlag(cmd)
	return cmd
}

func newAnalyzeModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models each provider offers",
		Args:  cobra.NoArgs,
		RunE:  runAnalyzeModels,
	}
	addOutputFlag(cmd)
	return cmd
}

func newAnalyzePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired analyses from the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(logrus.StandardLogger())
			if err != nil {
				return err
			}
			defer store.Close()

			sess := &session{store: store, logger: logrus.StandardLogger()}
			removed, err := sess.analysisCache().Prune()
			if err != nil {
				return fmt.Errorf("failed to prune analysis cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired analyses\n", removed)
			return nil
		},
	}
}

func selectedProvider(cmd *cobra.Command, prefs models.Settings) (string, error) {
	provider, _ := cmd.Flags().GetString("provider")
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = prefs.AIProvider
	}
	for _, p := range models.AIProviders {
		if p == provider {
			return provider, nil
		}
	}
	return "", fmt.Errorf("invalid AI provider %q (valid: %s)", provider, strings.Join(models.AIProviders, ", "))
}

func showAnalysis(cmd *cobra.Command, format string, analysis *models.AIAnalysis) error {
	if format != outputTable {
		return printStructured(cmd.OutOrStdout(), format, analysis)
	}
	r := newRenderer(cmd)
	r.Analysis(analysis)
	return r.Err()
}

func runAnalyzeRun(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	provider, err := selectedProvider(cmd, sess.prefs)
	if err != nil {
		return err
	}
	keyed := sess.prefs
	keyed.AIProvider = provider
	if provider != models.AIProviderOllama && keyed.ProviderKey() == "" {
		logrus.Warnf("No API key stored for %s; the server must have one configured", provider)
	}
	model, _ := cmd.Flags().GetString("model")
	scanID := args[0]
	cache := sess.analysisCache()

	if refresh, _ := cmd.Flags().GetBool("refresh"); !refresh {
		cached, err := cache.Get(scanID)
		if err != nil {
			logrus.Debugf("Analysis cache read failed: %v", err)
		}
		if cached != nil && !cached.Failed() && (model == "" || cached.Model == model) && cached.Provider == provider {
			logrus.Debugf("Using cached analysis for scan %s", scanID)
			return showAnalysis(cmd, format, cached)
		}
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	logrus.Infof("Analyzing scan %s with %s", scanID, provider)
	analysis, err := sess.client.AnalyzeScan(ctx, models.AnalyzeRequest{ScanID: scanID, Provider: provider, Model: model})
	if err != nil {
		return fmt.Errorf("failed to analyze scan: %w", err)
	}
	if analysis.ScanID == "" {
		analysis.ScanID = scanID
	}
	if !analysis.Failed() {
		if err := cache.Put(analysis); err != nil {
			logrus.Warnf("Failed to cache analysis: %v", err)
		}
	}
	return showAnalysis(cmd, format, analysis)
}

func runAnalyzeShow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	scanID := args[0]
	cache := sess.analysisCache()
	if cached, err := cache.Get(scanID); err == nil && cached != nil {
		return showAnalysis(cmd, format, cached)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	analysis, err := sess.client.GetAnalysis(ctx, scanID)
	if err != nil {
		return fmt.Errorf("failed to get analysis: %w", err)
	}
	if analysis == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "No analysis yet. Run: secdash analyze run %s\n", scanID)
		return nil
	}
	if analysis.ScanID == "" {
		analysis.ScanID = scanID
	}
	if err := cache.Put(analysis); err != nil {
		logrus.Warnf("Failed to cache analysis: %v", err)
	}
	return showAnalysis(cmd, format, analysis)
}

func runAnalyzeFinding(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	provider, err := selectedProvider(cmd, sess.prefs)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	analysis, err := sess.client.AnalyzeFinding(ctx, args[0], provider)
	if err != nil {
		return fmt.Errorf("failed to analyze finding: %w", err)
	}
	return showAnalysis(cmd, format, analysis)
}

func runAnalyzeProviders(cmd *cobra.Command, args []string) error {
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

	providers, err := sess.client.ListProviders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}
	if format != outputTable {
		return printStructured(cmd.OutOrStdout(), format, providers)
	}
	r := newRenderer(cmd)
	r.Providers(providers)
	return r.Err()
}

func runAnalyzeModels(cmd *cobra.Command, args []string) error {
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

	byProvider, err := sess.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if format != outputTable {
		return printStructured(cmd.OutOrStdout(), format, byProvider)
	}
	r := newRenderer(cmd)
	r.Models(byProvider)
	return r.Err()
}
