package port

import "context"

// Attachment is a file attached to an outbound email.
type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ResultEmail is the reply sent after a successful extraction.
type ResultEmail struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// EmailSender defines the contract for delivering results to the requester.
type EmailSender interface {
	SendResults(ctx context.Context, msg ResultEmail) error
	SendError(ctx context.Context, toEmail, detail string) error
}
