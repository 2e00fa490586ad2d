package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"labdigitizer/internal/config"
	"labdigitizer/internal/csvexport"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/email"
	"labdigitizer/internal/port"
)

// MailOutcome describes a processed inbound email.
type MailOutcome struct {
	RequestID  string
	Recipients []string
	Result     *Result
	Export     *csvexport.Export
	Archived   *Archived
}

// MailService answers inbound emails carrying instrument photos.
type MailService interface {
	// ProcessObject downloads a raw inbound email from object storage and
	// processes it.
	ProcessObject(ctx context.Context, bucket, key string) (*MailOutcome, error)
	// ProcessMessage replies to one raw RFC 5322 message. Failures the sender
	// can act on are answered with an error email and also returned.
	ProcessMessage(ctx context.Context, raw []byte) (*MailOutcome, error)
}

type mailService struct {
	pipeline *Pipeline
	storage  port.ObjectStorage
	sender   port.EmailSender
	archive  ArchiveService
	cfg      *config.EmailConfig
	logger   *zap.Logger
}

// NewMailService creates a new MailService implementation.
func NewMailService(
	pipeline *Pipeline,
	storage port.ObjectStorage,
	sender port.EmailSender,
	archive ArchiveService,
	cfg *config.EmailConfig,
	logger *zap.Logger,
) MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &mailService{
		pipeline: pipeline,
		storage:  storage,
		sender:   sender,
		archive:  archive,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *mailService) ProcessObject(ctx context.Context, bucket, key string) (*MailOutcome, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}
	s.logger.Info("processing inbound email", zap.String("bucket", bucket), zap.String("key", key))

	raw, err := s.storage.Download(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("downloading inbound email: %w", err)
	}
	return s.ProcessMessage(ctx, raw)
}

func (s *mailService) ProcessMessage(ctx context.Context, raw []byte) (*MailOutcome, error) {
	in, err := email.ParseInbound(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing inbound email: %w", err)
	}

	outcome := &MailOutcome{
		RequestID:  uuid.New().String(),
		Recipients: s.recipients(in),
	}
	log := s.logger.With(
		zap.String("request_id", outcome.RequestID),
		zap.String("from", in.From.Address),
		zap.String("subject", in.Subject),
		zap.Int("images", len(in.Images)),
	)
	log.Info("inbound email parsed")

	if err := s.pipeline.CheckCount(len(in.Images)); err != nil {
		s.replyError(ctx, log, in.From.Address, s.countDetail(err, len(in.Images)))
		return outcome, err
	}

	res, err := s.pipeline.Process(ctx, in.Images)
	outcome.Result = res
	if err != nil {
		detail := fmt.Sprintf("Processing error: %v", err)
		if errors.Is(err, domain.ErrNoCaptures) {
			detail = "Could not extract data from any of the images. Please ensure the entire instrument screen is clearly visible in the photo."
		}
		s.replyError(ctx, log, in.From.Address, detail)
		return outcome, err
	}

	exp, err := s.pipeline.Encode(res, "")
	if err != nil {
		s.replyError(ctx, log, in.From.Address, "Could not render the extracted data.")
		return outcome, fmt.Errorf("encoding export: %w", err)
	}
	outcome.Export = exp

	if s.archive != nil {
		archived, err := s.archive.Archive(ctx, outcome.RequestID, exp)
		if err != nil {
			log.Warn("archiving export failed, replying without archive", zap.Error(err))
		}
		outcome.Archived = archived
	}

	msg := s.resultEmail(outcome.Recipients, res, exp, in.Images)
	if err := s.sender.SendResults(ctx, msg); err != nil {
		log.Error("sending result email failed", zap.Error(err))
		return outcome, fmt.Errorf("sending result email: %w", err)
	}

	log.Info("request completed",
		zap.Int("samples", res.Samples()),
		zap.Int("failed_images", len(res.Failures)),
		zap.String("attachment", msg.Attachments[0].FileName),
	)
	return outcome, nil
}

// recipients returns the sender followed by the CC list, without duplicates
// and without this service's own address.
func (s *mailService) recipients(in *email.Inbound) []string {
	self := strings.ToLower(s.cfg.FromAddress)
	seen := map[string]bool{self: true}
	var out []string
	for _, a := range append([]*mail.Address{in.From}, in.Cc...) {
		addr := strings.ToLower(a.Address)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, a.Address)
	}
	return out
}

func (s *mailService) resultEmail(to []string, res *Result, exp *csvexport.Export, images []port.Image) port.ResultEmail {
	msg := port.ResultEmail{
		To:      to,
		Subject: ResultSubject(res),
		Attachments: []port.Attachment{{
			FileName:    csvexport.BuildFilename(res.Label(), res.Samples(), exp.Extension),
			ContentType: exp.ContentType,
			Data:        exp.Data,
		}},
	}

	attached := false
	if s.cfg.AttachImages {
		failed := map[int]bool{}
		for _, f := range res.Failures {
			failed[f.Index] = true
		}
		n := 0
		for i, img := range images {
			if failed[i] {
				continue
			}
			n++
			ext := "jpg"
			if http.DetectContentType(img.Data) == "image/png" {
				ext = "png"
			}
			msg.Attachments = append(msg.Attachments, port.Attachment{
				FileName:    fmt.Sprintf("labdata_image_%d.%s", n, ext),
				ContentType: domain.AllowedExtensions[ext],
				Data:        img.Data,
			})
			attached = true
		}
	}

	msg.Body = ResultBody(res, exp.Extension, attached)
	return msg
}

func (s *mailService) countDetail(err error, n int) string {
	if errors.Is(err, domain.ErrTooManyImages) {
		return fmt.Sprintf("Too many attachments (%d). Maximum %d images allowed per email.", n, s.pipeline.MaxImages())
	}
	return "No image attachments found. Please attach a photo of your instrument screen."
}

func (s *mailService) replyError(ctx context.Context, log *zap.Logger, to, detail string) {
	log.Warn("replying with error", zap.String("detail", detail))
	if err := s.sender.SendError(ctx, to, detail); err != nil {
		log.Error("sending error email failed", zap.Error(err))
	}
}
