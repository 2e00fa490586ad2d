package noop

import (
	"context"

	"go.uber.org/zap"

	"labdigitizer/internal/port"
)

type noopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates an EmailSender that only logs what it would have sent.
func NewNoopSender(logger *zap.Logger) port.EmailSender {
	return &noopSender{logger: logger}
}

func (s *noopSender) SendResults(_ context.Context, msg port.ResultEmail) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.FileName)
	}
	s.logger.Info("[NOOP EMAIL] results",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}

func (s *noopSender) SendError(_ context.Context, toEmail, detail string) error {
	s.logger.Info("[NOOP EMAIL] error reply", zap.String("to", toEmail), zap.String("detail", detail))
	return nil
}
