package email_test

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdigitizer/internal/email"
	"labdigitizer/internal/port"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0x01}, 120)...)

func TestParseInbound_NestedMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: Alice Smith <alice@lab.example>",
		"Cc: bob@lab.example, Carol <carol@lab.example>",
		"Subject: =?utf-8?q?plate_=C2=B5L_readings?=",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"see attached",
		"--inner",
		"Content-Type: text/html",
		"",
		"<p>see attached</p>",
		"--inner--",
		"--outer",
		"Content-Type: image/jpg",
		"Content-Transfer-Encoding: base64",
		`Content-Disposition: attachment; filename="screen.jpg"`,
		"",
		"/9j/4AAQSkZJRgAB",
		"--outer",
		"Content-Type: application/pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0xLjQ=",
		"--outer--",
		"",
	}, "\r\n")

	in, err := email.ParseInbound([]byte(raw))
	require.NoError(t, err)

	require.NotNil(t, in.From)
	assert.Equal(t, "alice@lab.example", in.From.Address)
	require.Len(t, in.Cc, 2)
	assert.Equal(t, "carol@lab.example", in.Cc[1].Address)
	assert.Equal(t, "plate µL readings", in.Subject)

	require.Len(t, in.Images, 1)
	assert.Equal(t, "screen.jpg", in.Images[0].Name)
	assert.Equal(t, "image/jpeg", in.Images[0].ContentType)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00, 0x01}, in.Images[0].Data)
}

func TestParseInbound_ReadsBuiltMessage(t *testing.T) {
	raw, err := email.BuildRawMessage(mail.Address{Address: "sender@example.com"}, port.ResultEmail{
		To:      []string{"digitizer@example.com"},
		Subject: "readings",
		Body:    "two screens",
		Attachments: []port.Attachment{
			{FileName: "a.png", ContentType: "image/png", Data: pngBytes},
			{FileName: "notes.csv", ContentType: "text/csv", Data: []byte("x\n")},
			{FileName: "b.png", ContentType: "image/png", Data: pngBytes},
		},
	})
	require.NoError(t, err)

	in, err := email.ParseInbound(raw)
	require.NoError(t, err)

	assert.Equal(t, "sender@example.com", in.From.Address)
	require.Len(t, in.Images, 2)
	assert.Equal(t, "a.png", in.Images[0].Name)
	assert.Equal(t, "b.png", in.Images[1].Name)
	assert.Equal(t, pngBytes, in.Images[1].Data)
}

func TestParseInbound_PlainTextHasNoImages(t *testing.T) {
	raw := "From: alice@lab.example\r\nSubject: hi\r\n\r\nno attachment\r\n"

	in, err := email.ParseInbound([]byte(raw))
	require.NoError(t, err)

	assert.Empty(t, in.Images)
}

func TestParseInbound_Invalid(t *testing.T) {
	_, err := email.ParseInbound([]byte("not an email"))
	assert.Error(t, err)
}

func TestParseInbound_MissingSender(t *testing.T) {
	raw := "To: digitizer@example.com\r\nSubject: readings\r\n\r\nno sender\r\n"

	_, err := email.ParseInbound([]byte(raw))
	assert.ErrorContains(t, err, "no sender")
}

func TestParseInbound_UnnamedInlineImage(t *testing.T) {
	raw := strings.Join([]string{
		"From: alice@lab.example",
		"Subject: inline",
		"MIME-Version: 1.0",
		`Content-Type: multipart/related; boundary="rel"`,
		"",
		"--rel",
		"Content-Type: text/html",
		"",
		`<img src="cid:screen">`,
		"--rel",
		"Content-Type: image/png",
		"Content-Transfer-Encoding: base64",
		"Content-ID: <screen>",
		"",
		"iVBORw0KGgo=",
		"--rel--",
		"",
	}, "\r\n")

	in, err := email.ParseInbound([]byte(raw))
	require.NoError(t, err)

	require.Len(t, in.Images, 1)
	assert.Equal(t, "image_1", in.Images[0].Name)
	assert.Equal(t, "image/png", in.Images[0].ContentType)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), in.Images[0].Data)
}
