// internal/commands/root.go
package sieve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/mwiater/sieve/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "sieve",
	Short:         "sieve harvests feeds into benchmark prompts vetted by model consensus",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = viper.ConfigFileUsed()
		currentConfig = &cfg

		if err := logging.Init(currentConfig.LogFilePath(), currentConfig.Debug); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	rootCmd.PersistentFlags().String("dataDir", "", "directory for markers, artifacts and local uploads")
	rootCmd.PersistentFlags().String("markerStore", "", "marker backend: file or sqlite")
	rootCmd.PersistentFlags().Int("concurrency", 0, "maximum prompts evaluated at once (0 = default)")
	rootCmd.PersistentFlags().String("statusAddr", "", "listen address for the status endpoint")

	for _, name := range []string{"debug", "logFile", "dataDir", "markerStore", "concurrency", "statusAddr"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig points viper at the selected config file.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config file and checks it against the config
// schema. A missing file is not an error here; commands that need sources
// call requireConfig.
func ensureConfigLoaded() error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		raw, err := os.ReadFile(used)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := appconfig.ValidateDocument(raw); err != nil {
			return fmt.Errorf("config file %q: %w", used, err)
		}
	}
	return nil
}

// requireConfig returns the loaded configuration after semantic validation.
func requireConfig() (*appconfig.Config, error) {
	cfg := GetConfig()
	if cfg == nil || cfg.ConfigPath == "" {
		return nil, fmt.Errorf("no configuration file found at %q", cfgFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
