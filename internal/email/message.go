// Package email builds the outbound result messages. Delivery lives in the
// ses and noop subpackages.
package email

import (
	"bytes"
	"fmt"
	"net/mail"

	"github.com/jhillyerd/enmime"

	"labdigitizer/internal/port"
)

// ErrorSubject is the subject of the failure reply.
const ErrorSubject = "Lab Data Processing Error"

// BuildRawMessage renders msg as a multipart/mixed MIME message with a plain
// text body followed by the attachments. The first address in msg.To is the
// primary recipient; the rest are copied.
func BuildRawMessage(from mail.Address, msg port.ResultEmail) ([]byte, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("result email has no recipients")
	}

	b := enmime.Builder().
		From(from.Name, from.Address).
		To("", msg.To[0]).
		Subject(msg.Subject).
		Header("X-Lab-Data-Processed", "true").
		Text([]byte(msg.Body))
	for _, cc := range msg.To[1:] {
		b = b.CC("", cc)
	}
	for _, a := range msg.Attachments {
		b = b.AddAttachment(a.Data, a.ContentType, a.FileName)
	}

	root, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("building message: %w", err)
	}
	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrorBody is the plain-text body of the failure reply.
func ErrorBody(detail string) string {
	return fmt.Sprintf(`Sorry, we couldn't process your lab instrument image.

Error: %s

Please ensure:
- You attached a clear photo of the instrument screen
- The entire screen is visible
- The image is in JPEG or PNG format

--
Lab Data Digitization Service
`, detail)
}
