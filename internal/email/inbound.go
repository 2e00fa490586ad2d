package email

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"

	"labdigitizer/internal/domain"
	"labdigitizer/internal/port"
)

// Inbound is a parsed incoming request email.
type Inbound struct {
	From    *mail.Address
	Cc      []*mail.Address
	Subject string
	Images  []port.Image
}

// ParseInbound reads a raw RFC 5322 message and collects its JPEG and PNG
// parts in document order, whether attached or inline.
func ParseInbound(raw []byte) (*Inbound, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	from, err := env.AddressList("From")
	if err != nil || len(from) == 0 {
		return nil, fmt.Errorf("inbound email has no sender")
	}
	in := &Inbound{
		From:    from[0],
		Subject: env.GetHeader("Subject"),
	}
	if cc, err := env.AddressList("Cc"); err == nil {
		in.Cc = cc
	}

	parts := env.Root.DepthMatchAll(func(p *enmime.Part) bool {
		_, ok := domain.AllowedContentTypes[strings.ToLower(p.ContentType)]
		return ok && len(p.Content) > 0
	})
	for _, p := range parts {
		contentType := strings.ToLower(p.ContentType)
		if contentType == "image/jpg" {
			contentType = "image/jpeg"
		}
		name := p.FileName
		if name == "" {
			name = fmt.Sprintf("image_%d", len(in.Images)+1)
		}
		in.Images = append(in.Images, port.Image{
			Name:        name,
			ContentType: contentType,
			Data:        p.Content,
		})
	}
	return in, nil
}
