// Package main is the entry point for the labdigitizer CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"labdigitizer/internal/bootstrap"
	"labdigitizer/internal/config"
)

// rootCmd is the base command for the labdigitizer CLI.
var rootCmd = &cobra.Command{
	Use:   "labdigitizer",
	Short: "Digitize lab instrument screen photos into spreadsheets",
	Long: `labdigitizer reads photos of lab instrument screens, asks a vision model
to transcribe the readings, and writes the merged, quality-annotated
results as CSV or XLSX.

Subcommands: extract (photos to a spreadsheet), mail (process an inbound
email stored in S3), and render (saved model answers to a spreadsheet).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./labdigitizer.yaml if present)")
}

// loadApp reads the optional config file, overlays LABDIGITIZER_ environment
// variables and wires the services.
func loadApp(ctx context.Context) (*bootstrap.App, error) {
	v := viper.New()
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("labdigitizer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := config.LoadWith(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return bootstrap.New(ctx, cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
