package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/bl4ck0w1/secdash/internal/apierrors"
	"github.com/bl4ck0w1/secdash/internal/client"
	"github.com/bl4ck0w1/secdash/internal/reporting"
	"github.com/bl4ck0w1/secdash/internal/storage"
	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

// Output formats accepted by --output on listing commands.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// session bundles what a command needs to talk to the backend and the
// local state directory. Close releases the store.
type session struct {
	store    storage.Store
	tokens   *storage.TokenStore
	settings *storage.SettingsRepository
	client   *client.Client
	metrics  *utils.MetricsCollector
	logger   *logrus.Logger
	prefs    models.Settings
}

func openStore(logger *logrus.Logger) (storage.Store, error) {
	dir := utils.ExpandHome(viper.GetString("storage.dir"))
	store, err := storage.Open(viper.GetString("storage.driver"), dir, viper.GetBool("storage.compression"), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}
	return store, nil
}

// resolvePassphrase returns the key used to seal API keys at rest; empty
// leaves them in clear text.
func resolvePassphrase() string {
	return viper.GetString("storage.passphrase")
}

func clientConfig() client.Config {
	return client.Config{
		BaseURL:       viper.GetString("api.url"),
		Timeout:       viper.GetDuration("api.timeout"),
		UserAgent:     viper.GetString("api.user_agent"),
		RateLimit:     viper.GetFloat64("api.rate_limit"),
		Burst:         viper.GetInt("api.burst"),
		MaxRetries:    viper.GetInt("api.max_retries"),
		RetryDelay:    viper.GetDuration("api.retry_delay"),
		RefreshBefore: viper.GetDuration("api.refresh_before"),

		MaxResponseBytes: viper.GetInt64("api.max_response_bytes"),
	}
}

// openSession wires store, settings, token store and API client from the
// current configuration.
func openSession() (*session, error) {
	logger := logrus.StandardLogger()

	store, err := openStore(logger)
	if err != nil {
		return nil, err
	}

	s := &session{
		store:    store,
		tokens:   storage.NewTokenStore(store),
		settings: storage.NewSettingsRepository(store, resolvePassphrase(), logger),
		metrics:  utils.NewClientMetrics(viper.GetBool("metrics.runtime")),
		logger:   logger,
	}

	prefs, err := s.settings.Load()
	if err != nil {
		logger.Warnf("Failed to load settings, using defaults: %v", err)
		prefs = models.DefaultSettings()
	}
	s.prefs = prefs

	c, err := client.New(clientConfig(), s.tokens, s.metrics, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	// an explicit api.user_agent wins over the stored preference
	if viper.GetString("api.user_agent") == "" {
		c.SetUserAgent(prefs.UserAgent)
	}
	s.client = c
	return s, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Debugf("Failed to close store: %v", err)
	}
}

func (s *session) analysisCache() *storage.AnalysisCache {
	return storage.NewAnalysisCache(s.store, viper.GetDuration("analysis.cache_ttl"), s.logger)
}

// commandContext is cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newRenderer(cmd *cobra.Command) *reporting.Renderer {
	out := cmd.OutOrStdout()
	color := false
	if f, ok := out.(*os.File); ok && !viper.GetBool("no_color") {
		color = term.IsTerminal(int(f.Fd()))
	}
	return reporting.NewRenderer(out, color)
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", outputTable:
		return outputTable, nil
	case outputJSON, outputYAML:
		return format, nil
	}
	return "", fmt.Errorf("unsupported output format %q (table, json, yaml)", format)
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
}

// printStructured writes v as JSON or YAML.
func printStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// confirm asks a yes/no question on the command's input.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
	var answer string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
		if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "unexpected newline") {
			return false, nil
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// Hint returns a follow-up line for errors the user can act on.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case apierrors.IsUnauthorized(err):
		return "Your session is missing or expired. Run `secdash auth login` and try again."
	case errors.Is(err, apierrors.ErrTransport):
		return fmt.Sprintf("Could not reach the API at %s. Check that it is running and retry.", viper.GetString("api.url"))
	case errors.Is(err, apierrors.ErrServer) && apierrors.IsRetryable(err):
		return "The server is having trouble. Retry in a moment."
	case errors.Is(err, client.ErrIncompatibleServer):
		return fmt.Sprintf("This client supports server versions %s.", client.SupportedServerVersions)
	}
	return ""
}
