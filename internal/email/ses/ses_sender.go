package ses

import (
	"context"
	"fmt"
	"net/mail"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"labdigitizer/internal/config"
	"labdigitizer/internal/email"
	"labdigitizer/internal/port"
)

type sesSender struct {
	client *sesv2.Client
	from   mail.Address
	logger *zap.Logger
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(ctx context.Context, cfg *config.EmailConfig, logger *zap.Logger) (port.EmailSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return &sesSender{
		client: sesv2.NewFromConfig(awsCfg),
		from:   mail.Address{Name: cfg.FromName, Address: cfg.FromAddress},
		logger: logger,
	}, nil
}

func (s *sesSender) SendResults(ctx context.Context, msg port.ResultEmail) error {
	raw, err := email.BuildRawMessage(s.from, msg)
	if err != nil {
		return fmt.Errorf("building result email: %w", err)
	}

	from := s.from.String()
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	s.logger.Info("result email sent",
		zap.Strings("to", msg.To),
		zap.Int("attachments", len(msg.Attachments)),
		zap.String("message_id", derefString(out.MessageId)),
	)
	return nil
}

func (s *sesSender) SendError(ctx context.Context, toEmail, detail string) error {
	subject := email.ErrorSubject
	body := email.ErrorBody(detail)
	from := s.from.String()

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Text: &types.Content{Data: &body},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
