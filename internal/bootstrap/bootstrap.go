package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"labdigitizer/internal/config"
	"labdigitizer/internal/email/noop"
	"labdigitizer/internal/email/ses"
	"labdigitizer/internal/logging"
	"labdigitizer/internal/merge"
	"labdigitizer/internal/parser"
	"labdigitizer/internal/parser/claude"
	"labdigitizer/internal/parser/gemini"
	"labdigitizer/internal/parser/openai"
	"labdigitizer/internal/port"
	"labdigitizer/internal/service"
	s3storage "labdigitizer/internal/storage/s3"
)

// App bundles the wired services shared by the server and the CLI.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Oracle    port.Oracle
	Providers []string
	Pipeline  *service.Pipeline
	Storage   port.ObjectStorage
	Archive   service.ArchiveService
	Mail      service.MailService
}

func init() {
	parser.RegisterProvider("claude", func(cfg *config.OracleProviderConfig) (port.Oracle, error) {
		return claude.NewOracle(cfg), nil
	})
	parser.RegisterProvider("openai", func(cfg *config.OracleProviderConfig) (port.Oracle, error) {
		return openai.NewOracle(cfg), nil
	})
	parser.RegisterProvider("gemini", func(cfg *config.OracleProviderConfig) (port.Oracle, error) {
		return gemini.NewOracle(cfg), nil
	})
}

// New builds every service from cfg. Providers without an API key are skipped;
// object storage is only created when a bucket is configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &App{Config: cfg, Logger: logger}

	// Initialize oracles
	var oracles []port.Oracle
	for _, p := range cfg.Oracle.Providers() {
		if p.APIKey == "" {
			logger.Warn("oracle provider has no API key, skipping", zap.String("provider", p.Provider))
			continue
		}
		o, err := parser.NewOracle(p)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize oracle: %w", err)
		}
		oracles = append(oracles, o)
		app.Providers = append(app.Providers, p.Provider)
	}
	switch len(oracles) {
	case 0:
		logger.Warn("no oracle provider configured, image extraction is unavailable")
	case 1:
		app.Oracle = oracles[0]
	default:
		app.Oracle = parser.NewFallbackOracle(oracles, app.Providers, logger)
	}

	// Initialize storage
	if cfg.S3.Bucket != "" {
		storage, err := s3storage.NewS3Client(ctx, &cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		app.Storage = storage
	}

	// Initialize email sender
	var sender port.EmailSender
	switch cfg.Email.Provider {
	case "ses":
		sender, err = ses.NewSESSender(ctx, &cfg.Email, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	case "noop", "":
		sender = noop.NewNoopSender(logger)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Email.Provider)
	}

	// Initialize services
	merger := merge.NewMerger(app.Oracle, cfg.Merge, logger)
	app.Pipeline = service.NewPipeline(app.Oracle, merger, &cfg.Pipeline, &cfg.Export, logger)
	app.Archive = service.NewArchiveService(app.Storage, &cfg.S3, logger)
	app.Mail = service.NewMailService(app.Pipeline, app.Storage, sender, app.Archive, &cfg.Email, logger)

	return app, nil
}

// Close flushes buffered log entries.
func (a *App) Close() {
	_ = a.Logger.Sync()
}
