package domain

import "errors"

var (
	ErrNoValidPayload      = errors.New("no valid structured payload in oracle response")
	ErrNoData              = errors.New("oracle found no tabular data in image")
	ErrNoCaptures          = errors.New("no image produced a usable capture")
	ErrNoImages            = errors.New("no image attachments found")
	ErrTooManyImages       = errors.New("too many images in one request")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("export upload to storage failed")
)

// ErrReconciliationUnavailable marks a failed advisory merge. It is recovered
// locally by the deterministic merge and never surfaced to callers.
var ErrReconciliationUnavailable = errors.New("advisory reconciliation unavailable")
