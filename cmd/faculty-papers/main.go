// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the faculty-papers CLI.
// The harvest command looks up each named faculty member in a bibliographic
// source and exports their most recent publications.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/faculty-papers/internal/config"
	"github.com/pdiddy/faculty-papers/internal/observability"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the faculty-papers CLI.
var rootCmd = &cobra.Command{
	Use:   "faculty-papers",
	Short: "Harvest recent publications for a faculty roster",
	Long: `faculty-papers resolves each name on a faculty roster to an author record,
collects that author's most recent publications, and writes one row per
publication (subject, abstract, title, date) to a spreadsheet or other sink.

Lookups can travel through rotating proxies. Subjects are processed by a
fixed pool of workers, each holding its own egress route.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./faculty-papers.yaml or ~/.config/faculty-papers/faculty-papers.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", "", "directory of secret files (default: .secrets)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")

	bindFlag(rootCmd.PersistentFlags().Lookup("secrets-dir"), "secrets_dir")
	bindFlag(rootCmd.PersistentFlags().Lookup("log-level"), "logging.level")
	bindFlag(rootCmd.PersistentFlags().Lookup("log-format"), "logging.format")
}

func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("faculty-papers")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "faculty-papers"))
		}
	}

	config.BindEnv(v)

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	}
}

// loadConfig reads the merged settings and builds the run logger.
func loadConfig() (types.Config, error) {
	boot := observability.NewLogger(observability.DefaultLoggingConfig(), nil)
	return config.Load(viper.GetViper(), boot)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
