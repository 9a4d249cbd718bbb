package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bl4ck0w1/secdash/pkg/utils"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the secdash configuration file",
		Long: `Manage the CLI configuration file (API endpoint, storage, logging, reports).
Scanner and AI preferences live in "secdash settings" instead.`,
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigGetCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	cmd.Flags().BoolP("yes", "y", false, "Overwrite an existing file without asking")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the configuration file",
		Long: `Set a value in the configuration file. Supports dotted keys (e.g. "api.url")
and basic type parsing:
- booleans: true/false
- integers/floats: 10, 2.5
- durations (for keys containing timeout|interval|delay|age|ttl): "30s", "24h"
- string lists: "a,b,c" -> ["a","b","c"]`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	}
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a configuration key",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigGet,
	}
}

// configFilePath is the file "config set" edits: the one in use, or the
// default location under the home directory.
func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}
	if explicit := viper.GetString("config"); explicit != "" {
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".secdash", "config.yaml"), nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	if utils.FileExists(path) {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			ok, err := confirm(cmd, fmt.Sprintf("%s already exists. Overwrite?", path))
			if err != nil {
				return err
			}
			if !ok {
				logrus.Info("Configuration initialization cancelled")
				return nil
			}
		}
	}
	if err := writeYAMLFile(path, defaultConfig()); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized: %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := viper.AllSettings()
	redacted, _ := utils.RedactSecrets(settings).(map[string]interface{})
	if redacted == nil {
		redacted = map[string]interface{}{}
	}
	if st, ok := redacted["storage"].(map[string]interface{}); ok {
		if p, _ := st["passphrase"].(string); p != "" {
			st["passphrase"] = "[REDACTED]"
		}
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
	}
	return printStructured(cmd.OutOrStdout(), outputYAML, redacted)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	path, err := configFilePath()
	if err != nil {
		return err
	}

	cfg := map[string]interface{}{}
	if utils.FileExists(path) {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read configuration: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	val := parseValueForKey(key, args[1])
	setNested(cfg, strings.Split(key, "."), val)
	if err := writeYAMLFile(path, cfg); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	logrus.Infof("Set %s in %s", key, path)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, val)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := strings.TrimSpace(args[0])
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("configuration key %q is not set", key)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%v\n", val)
	return nil
}

func writeYAMLFile(path string, v interface{}) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, out, 0o600)
}

func setNested(dst map[string]interface{}, keys []string, val interface{}) {
	if len(keys) == 0 {
		return
	}
	if len(keys) == 1 {
		dst[keys[0]] = val
		return
	}
	k := keys[0]
	child, ok := dst[k].(map[string]interface{})
	if !ok {
		child = map[string]interface{}{}
	}
	setNested(child, keys[1:], val)
	dst[k] = child
}

func parseValueForKey(key, s string) interface{} {
	trim := strings.TrimSpace(s)

	if strings.Contains(trim, ",") {
		parts := strings.Split(trim, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	if b, err := strconv.ParseBool(trim); err == nil {
		return b
	}
	if i, err := strconv.Atoi(trim); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trim, 64); err == nil {
		return f
	}
	if containsAny(strings.ToLower(key), []string{"timeout", "interval", "delay", "age", "ttl"}) {
		if d, err := time.ParseDuration(trim); err == nil {
			return d.String()
		}
	}
	return trim
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func defaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"log_level":  "warn",
		"log_format": "text",
		"api": map[string]interface{}{
			"url":         "http://localhost:8000",
			"timeout":     "30s",
			"rate_limit":  10,
			"burst":       5,
			"max_retries": 3,
			"retry_delay": "500ms",
		},
		"storage": map[string]interface{}{
			"driver":      "file",
			"dir":         "~/.secdash",
			"compression": false,
		},
		"analysis": map[string]interface{}{
			"cache_ttl": "24h",
		},
		"report": map[string]interface{}{
			"output_dir":     "./reports",
			"default_format": "html",
			"compress":       false,
			"max_age":        "720h",
		},
	}
}
