package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"labdigitizer/internal/capture"
	"labdigitizer/internal/config"
	"labdigitizer/internal/csvexport"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/merge"
	"labdigitizer/internal/parser"
	"labdigitizer/internal/port"
	"labdigitizer/internal/quality"
)

// Failure records an image that did not produce a capture. Index is the
// image's position in the request.
type Failure struct {
	Index int
	Image string
	Err   error
}

// Result is the outcome of one extraction request. Capture and Table are nil
// when no image survived.
type Result struct {
	Capture  *domain.Capture
	Table    *csvexport.Table
	Images   int
	Failures []Failure
}

// Samples returns the number of records in the merged capture.
func (r *Result) Samples() int {
	if r == nil || r.Capture == nil {
		return 0
	}
	return len(r.Capture.Records)
}

// Label returns the instrument label used in subjects and file names.
func (r *Result) Label() string {
	if r == nil || r.Capture == nil {
		return ""
	}
	return r.Capture.Instrument
}

// Pipeline turns instrument photos into one annotated, rendered capture.
type Pipeline struct {
	oracle    port.Oracle
	merger    *merge.Merger
	cfg       *config.PipelineConfig
	exportCfg *config.ExportConfig
	logger    *zap.Logger
}

// NewPipeline creates a Pipeline. The oracle may be nil when only Assemble is used.
func NewPipeline(
	oracle port.Oracle,
	merger *merge.Merger,
	cfg *config.PipelineConfig,
	exportCfg *config.ExportConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		oracle:    oracle,
		merger:    merger,
		cfg:       cfg,
		exportCfg: exportCfg,
		logger:    logger,
	}
}

// MaxImages returns the per-request image limit, zero meaning unlimited.
func (p *Pipeline) MaxImages() int { return p.cfg.MaxImages }

// CheckCount rejects requests with no images or more than the configured maximum.
func (p *Pipeline) CheckCount(n int) error {
	if n == 0 {
		return domain.ErrNoImages
	}
	if p.cfg.MaxImages > 0 && n > p.cfg.MaxImages {
		return domain.ErrTooManyImages
	}
	return nil
}

// Process extracts every image, merges the surviving captures and renders the
// result. An image that fails is recorded in Result.Failures; only when none
// survives is domain.ErrNoCaptures returned, together with the failures.
func (p *Pipeline) Process(ctx context.Context, images []port.Image) (*Result, error) {
	if err := p.CheckCount(len(images)); err != nil {
		return nil, err
	}
	if p.oracle == nil {
		return nil, fmt.Errorf("pipeline has no oracle configured")
	}

	var (
		captures []*domain.Capture
		failures []Failure
	)
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image_%d", i+1)
		}

		c, err := p.extract(ctx, img)
		if err != nil {
			p.logger.Warn("image extraction failed",
				zap.String("image", name),
				zap.Int("image_number", i+1),
				zap.Int("total_images", len(images)),
				zap.Error(err),
			)
			failures = append(failures, Failure{Index: i, Image: name, Err: err})
			continue
		}
		p.logger.Info("image extracted",
			zap.String("image", name),
			zap.Int("image_number", i+1),
			zap.Int("total_images", len(images)),
			zap.String("format", string(c.Format)),
			zap.Int("records", len(c.Records)),
		)
		captures = append(captures, c)
	}

	res, err := p.Assemble(ctx, captures)
	res.Images = len(images)
	res.Failures = failures
	if err != nil {
		return res, err
	}

	p.logger.Info("extraction complete",
		zap.Int("images", res.Images),
		zap.Int("failed_images", len(failures)),
		zap.Int("samples", res.Samples()),
		zap.String("mode", string(res.Table.Mode)),
	)
	return res, nil
}

// Assemble merges already decoded captures, annotates quality and lays out the
// export table. It never calls the oracle for extraction.
func (p *Pipeline) Assemble(ctx context.Context, captures []*domain.Capture) (*Result, error) {
	if len(captures) == 0 {
		return &Result{}, domain.ErrNoCaptures
	}
	merged := p.merger.Merge(ctx, captures)
	annotated := quality.Annotate(merged)
	p.logger.Debug("quality annotated", zap.Int("records", annotated))

	return &Result{
		Capture: merged,
		Table:   csvexport.BuildTable(merged),
		Images:  len(captures),
	}, nil
}

// Encode renders res in format, falling back to the configured default.
func (p *Pipeline) Encode(res *Result, format string) (*csvexport.Export, error) {
	if format == "" {
		format = p.exportCfg.Format
	}
	return csvexport.Encode(res.Table, strings.ToLower(format), p.exportCfg.IncludeBOM)
}

func (p *Pipeline) extract(ctx context.Context, img port.Image) (*domain.Capture, error) {
	contentType, err := p.checkImage(img)
	if err != nil {
		return nil, err
	}

	resp, err := p.oracle.Complete(ctx, port.OracleRequest{
		Prompt:      parser.BuildExtractionPrompt(),
		Image:       img.Data,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle call: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("oracle call: empty response")
	}

	payload, err := parser.ExtractPayload(resp.Text)
	if err != nil {
		return nil, err
	}
	c, err := capture.Decode(payload)
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			return nil, err
		}
		return nil, fmt.Errorf("decoding capture: %w", err)
	}
	return c, nil
}

// checkImage validates size and sniffs the content type from the image bytes.
// The declared type is ignored; providers only accept image/jpeg and image/png.
func (p *Pipeline) checkImage(img port.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", domain.ErrUnsupportedFileType
	}
	if maxBytes := p.cfg.MaxImageSizeMB * 1024 * 1024; maxBytes > 0 && int64(len(img.Data)) > maxBytes {
		return "", domain.ErrFileTooLarge
	}
	detected := http.DetectContentType(img.Data)
	if _, ok := domain.AllowedContentTypes[detected]; !ok {
		return "", domain.ErrUnsupportedFileType
	}
	return detected, nil
}
