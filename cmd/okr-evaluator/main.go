// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the okr-evaluator CLI.
// Commands: evaluate, kr, list, dashboard, show, history, version.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/okr-evaluator/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is built in PersistentPreRunE and synced after every command.
var logger = zap.NewNop()

// rootCmd is the base command for the okr-evaluator CLI.
var rootCmd = &cobra.Command{
	Use:   "okr-evaluator",
	Short: "Evaluate objectives and key results against the OKR evaluation service",
	Long: `okr-evaluator submits objectives and key results to a remote OKR
evaluation service and shows the score, SMART breakdown and suggestions it
returns. An objective that scores 7.5 or more unlocks key result entry.

The list and dashboard commands show the evaluated objectives with text,
status and date filters and aggregate metrics. Evaluations made from this
client are also recorded in a local history database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := logging.New(viper.GetString("log.level"), verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./okr-evaluator.yaml or ~/.config/okr-evaluator/okr-evaluator.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().String("base-url", "", "evaluation service base URL (overrides api.base_url)")

	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
}

func initConfig() {
	setDefaults()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("okr-evaluator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "okr-evaluator"))
		}
	}

	viper.SetEnvPrefix("OKR_EVALUATOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
