package service

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"labdigitizer/internal/config"
	"labdigitizer/internal/csvexport"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/port"
)

// Archived locates an export stored in object storage.
type Archived struct {
	Bucket string
	Key    string
	URL    string
}

// ArchiveService stores rendered exports for later download.
type ArchiveService interface {
	// Enabled reports whether an archive bucket is configured.
	Enabled() bool
	// Archive uploads exp under <prefix>/<requestID>.<ext> and returns a
	// presigned download URL. It returns nil, nil when archiving is disabled.
	Archive(ctx context.Context, requestID string, exp *csvexport.Export) (*Archived, error)
}

type archiveService struct {
	storage port.ObjectStorage
	cfg     *config.S3Config
	logger  *zap.Logger
}

// NewArchiveService creates a new ArchiveService. A nil storage disables it.
func NewArchiveService(storage port.ObjectStorage, cfg *config.S3Config, logger *zap.Logger) ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &archiveService{storage: storage, cfg: cfg, logger: logger}
}

func (s *archiveService) Enabled() bool {
	return s.storage != nil && s.cfg != nil && s.cfg.Bucket != ""
}

func (s *archiveService) Archive(ctx context.Context, requestID string, exp *csvexport.Export) (*Archived, error) {
	if !s.Enabled() {
		return nil, nil
	}

	key := path.Join(s.cfg.ArchivePrefix, fmt.Sprintf("%s.%s", requestID, exp.Extension))
	_, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(exp.Data),
		ContentType: exp.ContentType,
		Size:        int64(len(exp.Data)),
	})
	if err != nil {
		s.logger.Error("export archive upload failed", zap.String("key", key), zap.Error(err))
		return nil, domain.ErrUploadFailed
	}

	out := &Archived{Bucket: s.cfg.Bucket, Key: key}
	url, err := s.storage.GetPresignedURL(ctx, s.cfg.Bucket, key, s.cfg.PresignExpiry)
	if err != nil {
		s.logger.Warn("presigning archived export failed", zap.String("key", key), zap.Error(err))
		return out, nil
	}
	out.URL = url
	return out, nil
}
