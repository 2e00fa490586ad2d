package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"labdigitizer/internal/bootstrap"
	"labdigitizer/internal/capture"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/merge"
	"labdigitizer/internal/parser"
	"labdigitizer/internal/service"
)

var renderCmd = &cobra.Command{
	Use:   "render [answers...]",
	Short: "Render saved model answers without calling a model",
	Long: `Render reads saved model answers (raw JSON or text containing a fenced
JSON block), decodes each into a capture, then merges, annotates and
writes them like extract does. Captures are always merged
deterministically; no model is contacted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		pipeline := offlinePipeline(app)
		res, err := renderAnswers(cmd.Context(), pipeline, args, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		return writeExport(cmd, pipeline, res, format, output)
	},
}

func init() {
	renderCmd.Flags().StringP("output", "o", "", "output file; \"-\" writes to stdout (default: generated file name)")
	renderCmd.Flags().String("format", "", "export format: csv or xlsx (default from config)")

	rootCmd.AddCommand(renderCmd)
}

// offlinePipeline builds a pipeline from the app settings that holds no
// oracle, for either extraction or reconciliation.
func offlinePipeline(app *bootstrap.App) *service.Pipeline {
	merger := merge.NewMerger(nil, app.Config.Merge, app.Logger)
	return service.NewPipeline(nil, merger, &app.Config.Pipeline, &app.Config.Export, app.Logger)
}

// renderAnswers decodes every saved answer and assembles the readable ones.
// Unreadable files are reported on stderr and skipped.
func renderAnswers(ctx context.Context, pipeline *service.Pipeline, paths []string, stderr io.Writer) (*service.Result, error) {
	captures := make([]*domain.Capture, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		payload, err := parser.ExtractPayload(string(raw))
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			continue
		}
		c, err := capture.Decode(payload)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			continue
		}
		captures = append(captures, c)
	}
	return pipeline.Assemble(ctx, captures)
}
