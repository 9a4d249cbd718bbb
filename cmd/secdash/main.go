package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bl4ck0w1/secdash/cmd/secdash/commands"
	"github.com/bl4ck0w1/secdash/pkg/utils"
)

var (
	version   = "1.0.0"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "secdash",
	Short:         "secdash - Website Security Scanner Dashboard",
	Long:          "secdash drives a website security scanner backend from the terminal: launch scans, browse findings, follow the 30-day dashboard and read AI remediation plans.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd.Root()); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := initLogging(); err != nil {
			return err
		}

		if err := ensureDirs(); err != nil {
			logrus.Warnf("Failed to ensure directories: %v", err)
		}

		if !viper.GetBool("quiet") && cmd.Name() != "completion" {
			printBanner()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := commands.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		closeLogging()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.secdash/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet mode (no banner output)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "warn", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path")
	rootCmd.PersistentFlags().String("api-url", "", "backend API base URL (default http://localhost:8000)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewFindingsCommand())
	rootCmd.AddCommand(commands.NewDashboardCommand())
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewSettingsCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewAuthCommand())
	rootCmd.AddCommand(commands.NewReportCommand(version))
	rootCmd.AddCommand(commands.NewStatsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, buildDate))
	rootCmd.AddCommand(commands.NewCompletionCommand())

	installConsolidatedHelp(rootCmd)

	rootCmd.SetVersionTemplate(fmt.Sprintf("secdash %s (commit %s, built %s)\n", version, commit, buildDate))
}

func initConfig(root *cobra.Command) error {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logrus.Debugf("Failed to load .env: %v", err)
	}

	setDefaults()
	viper.SetEnvPrefix("SECDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// the web frontend's variable is honoured so one .env serves both
	_ = viper.BindEnv("api.url", "SECDASH_API_URL", "VITE_API_BASE_URL")
	if flag := root.PersistentFlags().Lookup("api-url"); flag != nil && flag.Changed {
		viper.Set("api.url", flag.Value.String())
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home dir: %w", err)
		}
		viper.AddConfigPath(filepath.Join(home, ".secdash"))
		viper.AddConfigPath("/etc/secdash/")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.Warnf("Failed reading config file: %v", err)
		}
	} else {
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("quiet", false)
	viper.SetDefault("no_color", false)

	viper.SetDefault("api.url", "http://localhost:8000")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.rate_limit", 10)
	viper.SetDefault("api.burst", 5)
	viper.SetDefault("api.max_retries", 3)
	viper.SetDefault("api.retry_delay", "500ms")
	viper.SetDefault("api.refresh_before", "2m")
	viper.SetDefault("api.max_response_bytes", 32<<20)

	viper.SetDefault("storage.driver", "file")
	viper.SetDefault("storage.dir", "~/.secdash")
	viper.SetDefault("storage.compression", false)

	viper.SetDefault("analysis.cache_ttl", "24h")

	viper.SetDefault("report.output_dir", "./reports")
	viper.SetDefault("report.default_format", "html")
	viper.SetDefault("report.compress", false)
	viper.SetDefault("report.max_age", "720h")

	viper.SetDefault("watch.interval", "2s")
	viper.SetDefault("watch.timeout", "30m")
	viper.SetDefault("metrics.runtime", false)
}

// appLogger owns the rotating log file; it is closed when the command ends.
var appLogger *utils.Logger

func initLogging() error {
	logConfig := utils.LogConfig{
		Level:  viper.GetString("log_level"),
		Format: viper.GetString("log_format"),
		File:   viper.GetString("log_file"),
	}

	logger, err := utils.NewLogger(logConfig, "secdash", version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize structured logger, falling back: %v\n", err)
		logger = utils.DefaultLogger("secdash", version)
	}
	appLogger = logger

	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.Level)
	logrus.SetFormatter(logger.Formatter)

	for _, hooks := range logger.Hooks {
		for _, h := range hooks {
			logrus.AddHook(h)
		}
	}
	return nil
}

func closeLogging() {
	if appLogger == nil {
		return
	}
	if err := appLogger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
	}
}

func ensureDirs() error {
	d := utils.ExpandHome(viper.GetString("storage.dir"))
	if d == "" {
		return nil
	}
	if err := utils.EnsureDir(d); err != nil {
		return fmt.Errorf("ensure dir %s: %w", d, err)
	}
	return nil
}

func printBanner() {
	const banner = `
  ___  ___  ___  __| | __ _ ___| |__
 / __|/ _ \/ __|/ _  |/ _  / __| '_ \
 \__ \  __/ (__| (_| | (_| \__ \ | | |
 |___/\___|\___|\__,_|\__,_|___/_| |_|   v%s

        Website Security Scanner Dashboard
 ______________________________________________
`
	fmt.Fprintf(os.Stderr, banner, version)
	fmt.Fprintf(os.Stderr, "Build: %s (%s) | %s/%s\n\n", commit, buildDate, runtime.GOOS, runtime.GOARCH)
}

func installConsolidatedHelp(root *cobra.Command) {
	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}

		if !viper.GetBool("quiet") {
			printBanner()
		}

		fmt.Println("USAGE:")
		fmt.Print("  secdash [command] [global flags]\n\n")
		fmt.Println("GLOBAL FLAGS:")
		home, _ := os.UserHomeDir()
		fmt.Printf("  -c, --config string      config file (default is %s)\n", filepath.Join(home, ".secdash", "config.yaml"))
		fmt.Printf("  -q, --quiet              quiet mode (no banner output)\n")
		fmt.Printf("  -l, --log-level string   log level (debug, info, warn, error, fatal) (default %q)\n", "warn")
		fmt.Printf("      --log-format string  log format (text, json) (default %q)\n", "text")
		fmt.Printf("      --log-file string    log file path\n")
		fmt.Printf("      --api-url string     backend API base URL\n")
		fmt.Printf("      --no-color           disable colored output\n")
		fmt.Printf("  -v, --version            version for secdash\n\n")

		cmds := []*cobra.Command{}
		for _, c := range root.Commands() {
			if c.IsAvailableCommand() && !c.Hidden {
				cmds = append(cmds, c)
			}
		}
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })
		fmt.Println("COMMANDS OVERVIEW:")
		for _, c := range cmds {
			fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
		}
		fmt.Println()

		fmt.Println("DETAILED COMMAND HELP")
		fmt.Println("─────────────────")

		for _, c := range cmds {
			fmt.Printf("\n%s\n", c.Name())
			fmt.Println(strings.Repeat("-", len(c.Name())))

			switch {
			case c.Long != "":
				fmt.Println(c.Long)
			case c.Short != "":
				fmt.Println(c.Short)
			}

			fmt.Println("\nUsage:")
			fmt.Printf("  %s\n\n", c.UseLine())

			if c.Flags().HasAvailableFlags() {
				fmt.Println("Flags:")
				c.Flags().PrintDefaults()
				fmt.Println()
			}

			subs := []*cobra.Command{}
			for _, sc := range c.Commands() {
				if sc.IsAvailableCommand() && !sc.Hidden {
					subs = append(subs, sc)
				}
			}
			if len(subs) > 0 {
				fmt.Println("Subcommands:")
				for _, sc := range subs {
					title := c.Name() + " " + sc.Name()
					fmt.Printf("\n%s\n", title)
					fmt.Println(strings.Repeat("-", len(title)))

					if sc.Short != "" {
						fmt.Println(sc.Short)
						fmt.Println()
					}

					fmt.Println("Usage:")
					fmt.Printf("  %s\n\n", sc.UseLine())

					if sc.Flags().HasAvailableFlags() {
						fmt.Println("Flags:")
						sc.Flags().PrintDefaults()
						fmt.Println()
					}
				}
			}
		}

		fmt.Println("NOTES:")
		fmt.Println("  • Use \"secdash [command] --help\" for focused help on any command.")
		fmt.Println("  • Settings are read from $HOME/.secdash/config.yaml, SECDASH_* variables and .env.")
		fmt.Println("  • Autocomplete instructions are printed by `secdash completion --help`.")
	})
}

func main() {
	startTime := time.Now()
	Execute()
	if strings.EqualFold(viper.GetString("log_level"), "debug") {
		logrus.Debugf("Execution completed in %v", time.Since(startTime))
	}
	closeLogging()
}
