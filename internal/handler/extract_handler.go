package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labdigitizer/internal/csvexport"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/port"
	"labdigitizer/internal/service"
)

// Response headers set on a successful extraction.
const (
	HeaderExportURL    = "X-Export-URL"
	HeaderSamples      = "X-Samples"
	HeaderFailedImages = "X-Failed-Images"
)

// FailureDetail describes one image that produced no data.
type FailureDetail struct {
	Image string `json:"image"`
	Error string `json:"error"`
}

// ExtractHandler handles instrument photo uploads.
type ExtractHandler struct {
	pipeline      *service.Pipeline
	archive       service.ArchiveService
	maxImageBytes int64
	logger        *zap.Logger
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(pipeline *service.Pipeline, archive service.ArchiveService, maxImageSizeMB int64, logger *zap.Logger) *ExtractHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractHandler{
		pipeline:      pipeline,
		archive:       archive,
		maxImageBytes: maxImageSizeMB * 1024 * 1024,
		logger:        logger,
	}
}

// Extract handles POST /api/v1/extract
// Accepts multipart images in the "images" field and responds with the
// rendered export. ?format=csv|xlsx selects the encoding.
func (h *ExtractHandler) Extract(c *gin.Context) {
	format := strings.ToLower(c.Query("format"))
	if format != "" && format != csvexport.FormatCSV && format != csvexport.FormatXLSX {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be csv or xlsx")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_MULTIPART", "request must be multipart/form-data with an images field")
		return
	}
	files := form.File["images"]
	if err := h.pipeline.CheckCount(len(files)); err != nil {
		HandleError(c, h.logger, err)
		return
	}

	images := make([]port.Image, 0, len(files))
	for _, fh := range files {
		if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
			HandleError(c, h.logger, domain.ErrFileTooLarge)
			return
		}
		data, err := readFormFile(fh)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_MULTIPART", "could not read uploaded image")
			return
		}
		images = append(images, port.Image{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	ctx := c.Request.Context()
	res, err := h.pipeline.Process(ctx, images)
	if err != nil {
		if errors.Is(err, domain.ErrNoCaptures) && res != nil {
			status, code, msg := MapDomainError(err)
			c.JSON(status, APIResponse{
				Success: false,
				Error:   &APIError{Code: code, Message: msg, Details: failureDetails(res.Failures)},
			})
			return
		}
		HandleError(c, h.logger, err)
		return
	}

	exp, err := h.pipeline.Encode(res, format)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	if h.archive != nil {
		archived, err := h.archive.Archive(ctx, c.GetString("request_id"), exp)
		if err != nil {
			h.logger.Warn("archiving export failed", zap.String("request_id", c.GetString("request_id")), zap.Error(err))
		} else if archived != nil && archived.URL != "" {
			c.Header(HeaderExportURL, archived.URL)
		}
	}

	filename := csvexport.BuildFilename(res.Label(), res.Samples(), exp.Extension)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header(HeaderSamples, strconv.Itoa(res.Samples()))
	c.Header(HeaderFailedImages, strconv.Itoa(len(res.Failures)))
	c.Data(http.StatusOK, exp.ContentType, exp.Data)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func failureDetails(failures []service.Failure) []FailureDetail {
	out := make([]FailureDetail, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureDetail{Image: f.Image, Error: f.Err.Error()})
	}
	return out
}
