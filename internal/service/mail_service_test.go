package service_test

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"labdigitizer/internal/config"
	"labdigitizer/internal/csvexport"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/email"
	"labdigitizer/internal/port"
	"labdigitizer/internal/service"
	"labdigitizer/mocks"
)

const plateScreen = `{
	"instrument": "SpectraMax (Abs)",
	"is_plate_format": true,
	"records": [
		{"well": "A1", "value": 0.11}, {"well": "A2", "value": 0.12}, {"well": "A3", "value": 0.13},
		{"well": "A4", "value": 0.14}, {"well": "A5", "value": 0.15}, {"well": "A6", "value": 0.16},
		{"well": "A7", "value": 0.17}
	]
}`

type mailFixture struct {
	oracle  *mocks.MockOracle
	storage *mocks.MockObjectStorage
	sender  *mocks.MockEmailSender
	svc     service.MailService
}

func newMailFixture(bucket string, attachImages bool) *mailFixture {
	f := &mailFixture{
		oracle:  new(mocks.MockOracle),
		storage: new(mocks.MockObjectStorage),
		sender:  new(mocks.MockEmailSender),
	}
	s3Cfg := &config.S3Config{Bucket: bucket, ArchivePrefix: "exports", PresignExpiry: 600}
	emailCfg := &config.EmailConfig{FromAddress: "digitizer@example.com", AttachImages: attachImages}

	pipeline := newLimitedPipeline(f.oracle, 2)
	f.svc = service.NewMailService(
		pipeline,
		f.storage,
		f.sender,
		service.NewArchiveService(f.storage, s3Cfg, nil),
		emailCfg,
		nil,
	)
	return f
}

// inboundEmail builds a raw request email with one attachment per image.
func inboundEmail(t *testing.T, cc []string, images ...[]byte) []byte {
	t.Helper()
	var attachments []port.Attachment
	for i, data := range images {
		attachments = append(attachments, port.Attachment{
			FileName:    "screen" + string(rune('1'+i)) + ".jpg",
			ContentType: "image/jpeg",
			Data:        data,
		})
	}
	to := append([]string{"digitizer@example.com"}, cc...)
	raw, err := email.BuildRawMessage(mail.Address{Name: "Alice", Address: "alice@lab.example"}, port.ResultEmail{
		To:          to,
		Subject:     "nanodrop run",
		Body:        "see attached",
		Attachments: attachments,
	})
	require.NoError(t, err)
	return raw
}

func TestMailService_RepliesWithResults(t *testing.T) {
	f := newMailFixture("", true)
	answerFor(f.oracle, "image/jpeg", goodScreen)
	answerFor(f.oracle, "image/png", glareScreen)
	raw := inboundEmail(t, []string{"bob@lab.example"}, jpegData, pngData)
	f.storage.On("Download", mock.Anything, "inbox", "msg-1").Return(raw, nil)

	var sent port.ResultEmail
	f.sender.On("SendResults", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(port.ResultEmail) }).
		Return(nil)

	out, err := f.svc.ProcessObject(context.Background(), "inbox", "msg-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"alice@lab.example", "bob@lab.example"}, out.Recipients)
	assert.Nil(t, out.Archived)
	assert.Equal(t, []string{"alice@lab.example", "bob@lab.example"}, sent.To)
	assert.Equal(t, "Lab Data Results - Nanodrop (1 samples, 2 images)", sent.Subject)

	require.Len(t, sent.Attachments, 3)
	assert.Equal(t, "labdata_nanodrop_1_samples.csv", sent.Attachments[0].FileName)
	assert.Equal(t, out.Export.Data, sent.Attachments[0].Data)
	assert.Equal(t, "labdata_image_1.jpg", sent.Attachments[1].FileName)
	assert.Equal(t, "labdata_image_2.png", sent.Attachments[2].FileName)
	assert.Equal(t, "image/png", sent.Attachments[2].ContentType)

	assert.Contains(t, sent.Body, "Images Processed: 2")
	assert.Contains(t, sent.Body, "1: 24.3 ng/uL (260/280: 1.93, 260/230: 1.58)")
	assert.Contains(t, sent.Body, "clear photo | glare on screen")
	assert.Contains(t, sent.Body, "along with your original image(s)")
	f.sender.AssertNotCalled(t, "SendError", mock.Anything, mock.Anything, mock.Anything)
}

func TestMailService_PlatePreviewAndArchive(t *testing.T) {
	f := newMailFixture("archive-bucket", false)
	answerFor(f.oracle, "image/jpeg", plateScreen)

	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "archive-bucket" && strings.HasPrefix(in.Key, "exports/") && strings.HasSuffix(in.Key, ".csv")
	})).Return(&port.UploadOutput{ETag: "etag"}, nil)
	f.storage.On("GetPresignedURL", mock.Anything, "archive-bucket", mock.Anything, int64(600)).
		Return("https://example.com/presigned", nil)

	var sent port.ResultEmail
	f.sender.On("SendResults", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(port.ResultEmail) }).
		Return(nil)

	out, err := f.svc.ProcessMessage(context.Background(), inboundEmail(t, nil, jpegData))
	require.NoError(t, err)

	require.NotNil(t, out.Archived)
	assert.Equal(t, "exports/"+out.RequestID+".csv", out.Archived.Key)
	assert.Equal(t, "https://example.com/presigned", out.Archived.URL)

	assert.Equal(t, "Lab Data Results - SpectraMax (Abs) (7 samples, 1 images)", sent.Subject)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "labdata_spectramax_abs_7_samples.csv", sent.Attachments[0].FileName)
	assert.Contains(t, sent.Body, "Samples extracted: 7 of 96 wells")
	assert.Contains(t, sent.Body, "    A5: 0.15\n")
	assert.NotContains(t, sent.Body, "A6: 0.16")
	assert.Contains(t, sent.Body, "... and 2 more wells")
	assert.NotContains(t, sent.Body, "original image")
}

func TestMailService_ArchiveFailureStillReplies(t *testing.T) {
	f := newMailFixture("archive-bucket", false)
	answerFor(f.oracle, "image/jpeg", goodScreen)
	f.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	f.sender.On("SendResults", mock.Anything, mock.Anything).Return(nil)

	out, err := f.svc.ProcessMessage(context.Background(), inboundEmail(t, nil, jpegData))

	require.NoError(t, err)
	assert.Nil(t, out.Archived)
	f.sender.AssertNumberOfCalls(t, "SendResults", 1)
}

func TestMailService_ErrorReplies(t *testing.T) {
	tests := []struct {
		name    string
		images  [][]byte
		answer  string
		wantErr error
		detail  string
	}{
		{
			name:    "no images",
			wantErr: domain.ErrNoImages,
			detail:  "No image attachments found",
		},
		{
			name:    "too many images",
			images:  [][]byte{jpegData, jpegData, jpegData},
			wantErr: domain.ErrTooManyImages,
			detail:  "Too many attachments (3). Maximum 2 images allowed per email.",
		},
		{
			name:    "nothing extracted",
			images:  [][]byte{jpegData},
			answer:  "Sorry, the screen is unreadable.",
			wantErr: domain.ErrNoCaptures,
			detail:  "Could not extract data from any of the images",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMailFixture("", true)
			if tt.answer != "" {
				answerFor(f.oracle, "image/jpeg", tt.answer)
			}
			f.sender.On("SendError", mock.Anything, "alice@lab.example", mock.MatchedBy(func(detail string) bool {
				return strings.Contains(detail, tt.detail)
			})).Return(nil)

			_, err := f.svc.ProcessMessage(context.Background(), inboundEmail(t, nil, tt.images...))

			assert.ErrorIs(t, err, tt.wantErr)
			f.sender.AssertExpectations(t)
			f.sender.AssertNotCalled(t, "SendResults", mock.Anything, mock.Anything)
		})
	}
}

func TestMailService_DownloadFailure(t *testing.T) {
	f := newMailFixture("", true)
	f.storage.On("Download", mock.Anything, "inbox", "missing").Return(nil, errors.New("NoSuchKey"))

	_, err := f.svc.ProcessObject(context.Background(), "inbox", "missing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchKey")
	f.sender.AssertNotCalled(t, "SendError", mock.Anything, mock.Anything, mock.Anything)
}

func TestResultBody_NegativeConcentration(t *testing.T) {
	row := &domain.DynamicRow{Fields: domain.NewFields(
		domain.Field{Key: domain.KeySampleNumber, Value: domain.Number("4")},
		domain.Field{Key: domain.KeyConcentration, Value: domain.Number("-2.1")},
	)}
	res := &service.Result{
		Capture: &domain.Capture{Format: domain.FormatTabular, Records: []domain.Record{row}},
		Images:  1,
	}

	body := service.ResultBody(res, csvexport.FormatXLSX, false)

	assert.Contains(t, body, "    4: INVALID (negative value: -2.1)\n")
	assert.Contains(t, body, "Instrument Type: Unknown")
	assert.Contains(t, body, "No additional analysis provided.")
	assert.Contains(t, body, "attached as a XLSX file.")
}
