package port

import "context"

// OracleRequest is a single prompt to a vision-capable language model. Image is
// optional; reconciliation calls are text only.
type OracleRequest struct {
	Prompt      string
	Image       []byte
	ContentType string
}

// OracleResponse carries the raw, unstructured text the model answered with.
type OracleResponse struct {
	Text      string
	ModelUsed string
}

// Oracle abstracts the external inference service. Implementations make one
// attempt per call; retry policy belongs to the caller.
type Oracle interface {
	Complete(ctx context.Context, req OracleRequest) (*OracleResponse, error)
}
