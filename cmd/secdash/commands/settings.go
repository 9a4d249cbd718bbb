package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bl4ck0w1/secdash/internal/storage"
	"github.com/bl4ck0w1/secdash/pkg/models"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage scanner and AI settings",
		Long: `Manage the settings record: AI provider and keys, scanner preferences
and notifications. The record is stored locally and always written as a whole.`,
	}
	cmd.AddCommand(newSettingsInitCommand())
	cmd.AddCommand(newSettingsShowCommand())
	cmd.AddCommand(newSettingsSetCommand())
	cmd.AddCommand(newSettingsGetCommand())
	return cmd
}

func newSettingsInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Reset settings to their defaults",
		Args:  cobra.NoArgs,
		RunE:  runSettingsInit,
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSettingsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show all settings (API keys redacted)",
		Args:  cobra.NoArgs,
		RunE:  runSettingsShow,
	}
	cmd.Flags().Bool("reveal", false, "Show API keys in clear text")
	return cmd
}

func newSettingsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting and save the whole record. Keys are the names shown
by "secdash settings show" (e.g. ai_provider, max_scan_duration, enable_active_scan).`,
		Args: cobra.ExactArgs(2),
		RunE: runSettingsSet,
	}
}

func newSettingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE:  runSettingsGet,
	}
}

func openSettings() (*storage.SettingsRepository, storage.Store, error) {
	logger := logrus.StandardLogger()
	store, err := openStore(logger)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewSettingsRepository(store, resolvePassphrase(), logger), store, nil
}

func runSettingsInit(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := confirm(cmd, "Replace all settings with defaults?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}
	repo, store, err := openSettings()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := repo.Save(models.DefaultSettings()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults")
	return nil
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	repo, store, err := openSettings()
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := repo.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	fields, err := settingsFields(s)
	if err != nil {
		return err
	}
	if reveal, _ := cmd.Flags().GetBool("reveal"); !reveal {
		for k, v := range fields {
			if isSecretSetting(k) {
				if str, _ := v.(string); str != "" {
					fields[k] = utils.MaskSensitiveData(str)
				}
			}
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r := newRenderer(cmd)
	stats := make(map[string]interface{}, len(fields))
	for _, k := range keys {
		stats[k] = fields[k]
	}
	r.KeyValues("Settings", stats)
	return r.Err()
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	repo, store, err := openSettings()
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := repo.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	updated, key, err := applySetting(s, args[0], args[1])
	if err != nil {
		return err
	}
	if err := repo.Save(updated); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	shown := args[1]
	if isSecretSetting(key) {
		shown = utils.MaskSensitiveData(shown)
	}
	logrus.Debugf("Setting %s updated", key)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, shown)
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	repo, store, err := openSettings()
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := repo.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	fields, err := settingsFields(s)
	if err != nil {
		return err
	}
	key, ok := resolveSettingKey(fields, args[0])
	if !ok {
		return fmt.Errorf("unknown setting %q", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%v\n", fields[key])
	return nil
}

// settingsFields flattens the record into its yaml field names.
func settingsFields(s models.Settings) (map[string]interface{}, error) {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	fields := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return fields, nil
}

// applySetting returns a copy of s with one field replaced. The value is
// parsed as YAML so booleans and numbers keep their types.
func applySetting(s models.Settings, name, value string) (models.Settings, string, error) {
	fields, err := settingsFields(s)
	if err != nil {
		return s, "", err
	}
	key, ok := resolveSettingKey(fields, name)
	if !ok {
		return s, "", fmt.Errorf("unknown setting %q", name)
	}

	var parsed interface{} = value
	if _, isString := fields[key].(string); !isString {
		if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
			return s, "", fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	fields[key] = parsed

	raw, err := yaml.Marshal(fields)
	if err != nil {
		return s, "", fmt.Errorf("encode settings: %w", err)
	}
	var out models.Settings
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return s, "", fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return out, key, nil
}

// resolveSettingKey accepts snake_case, camelCase or kebab-case names.
func resolveSettingKey(fields map[string]interface{}, name string) (string, bool) {
	want := normalizeKey(name)
	for k := range fields {
		if normalizeKey(k) == want {
			return k, true
		}
	}
	return "", false
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "").Replace(s)
}

func isSecretSetting(key string) bool {
	return strings.HasSuffix(key, "_api_key")
}
