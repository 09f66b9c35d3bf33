// Package cmd provides the repoview command-line interface.
//
// Configuration is read, highest priority first, from command-line flags,
// REPOVIEW_* environment variables (REPOVIEW_SERVER_PORT, REPOVIEW_SCAN_MAX_FILES
// and so on), and a .repoview.yml file. The file is taken from --config, then
// REPOVIEW_CONFIG_FILE, then the current directory.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/h4x3rotab/repoview/internal/config"
	"github.com/h4x3rotab/repoview/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "repoview",
	Short: "Browse a local repository in the browser",
	Long: `repoview serves a local repository as a small website: directory
listings, rendered markdown, highlighted source files and raw downloads,
with live reload and a continuous broken-link report.

Quick Start:
  repoview serve               Serve the current directory
  repoview serve ~/src/docs    Serve another directory
  repoview check --fail        Scan for broken links once (CI friendly)`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .repoview.yml, can also use REPOVIEW_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("REPOVIEW_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	config.ConfigureEnv(viper.GetViper())

	// A missing file is fine; defaults and the environment still apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig applies a positional repository argument and loads the
// configuration.
func loadConfig(args []string) (*config.Config, error) {
	if len(args) > 0 {
		viper.Set("repo", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}
