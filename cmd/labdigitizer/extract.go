package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labdigitizer/internal/csvexport"
	"labdigitizer/internal/port"
	"labdigitizer/internal/service"
)

var extractCmd = &cobra.Command{
	Use:   "extract [images...]",
	Short: "Extract readings from instrument photos",
	Long: `Extract sends every photo to the configured vision model, merges the
captures and writes one spreadsheet. Images that fail are reported on
stderr; the command fails only when no image produced data.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Pipeline.CheckCount(len(args)); err != nil {
			return err
		}
		images := make([]port.Image, 0, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			images = append(images, port.Image{Name: filepath.Base(path), Data: data})
		}

		res, err := app.Pipeline.Process(cmd.Context(), images)
		reportFailures(cmd, res)
		if err != nil {
			return err
		}
		app.Logger.Info("extraction complete",
			zap.String("instrument", res.Label()),
			zap.Int("samples", res.Samples()),
		)
		return writeExport(cmd, app.Pipeline, res, format, output)
	},
}

func init() {
	extractCmd.Flags().StringP("output", "o", "", "output file; \"-\" writes to stdout (default: generated file name)")
	extractCmd.Flags().String("format", "", "export format: csv or xlsx (default from config)")

	rootCmd.AddCommand(extractCmd)
}

func reportFailures(cmd *cobra.Command, res *service.Result) {
	if res == nil {
		return
	}
	for _, f := range res.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", f.Image, f.Err)
	}
}

// writeExport encodes res and writes it to output, stdout for "-", or a
// generated file name in the working directory when output is empty.
func writeExport(cmd *cobra.Command, pipeline *service.Pipeline, res *service.Result, format, output string) error {
	exp, err := pipeline.Encode(res, format)
	if err != nil {
		return err
	}
	if output == "-" {
		_, err := cmd.OutOrStdout().Write(exp.Data)
		return err
	}
	if output == "" {
		output = csvexport.BuildFilename(res.Label(), res.Samples(), exp.Extension)
	}
	if err := os.WriteFile(output, exp.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d samples to %s\n", res.Samples(), output)
	return nil
}
