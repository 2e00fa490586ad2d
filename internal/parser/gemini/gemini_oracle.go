package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"labdigitizer/internal/config"
	"labdigitizer/internal/parser"
	"labdigitizer/internal/port"
)

const (
	apiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
)

// Oracle implements port.Oracle using Google's Gemini API.
type Oracle struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewOracle creates a Gemini-backed oracle.
func NewOracle(cfg *config.OracleProviderConfig) *Oracle {
	return newOracle(cfg, "")
}

// NewOracleWithEndpoint creates an oracle pointing at a custom API endpoint (for testing).
func NewOracleWithEndpoint(cfg *config.OracleProviderConfig, endpoint string) *Oracle {
	return newOracle(cfg, endpoint)
}

func newOracle(cfg *config.OracleProviderConfig, endpoint string) *Oracle {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	return &Oracle{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (o *Oracle) Complete(ctx context.Context, req port.OracleRequest) (*port.OracleResponse, error) {
	var parts []map[string]interface{}
	if len(req.Image) > 0 {
		mimeType, err := toGeminiMimeType(req.ContentType)
		if err != nil {
			return nil, err
		}
		parts = append(parts, map[string]interface{}{
			"inline_data": map[string]interface{}{
				"mime_type": mimeType,
				"data":      base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}
	parts = append(parts, map[string]interface{}{"text": req.Prompt})

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": parts,
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.1,
			"maxOutputTokens": 8192,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parser.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, parser.NewRateLimitError("gemini", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody, o.model)
}

func toGeminiMimeType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg":
		return "image/jpeg", nil
	case "image/png":
		return "image/png", nil
	default:
		return "", fmt.Errorf("unsupported content type for extraction: %s", contentType)
	}
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte, model string) (*port.OracleResponse, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from API: no candidates")
	}

	if len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from API: no parts")
	}

	if resp.Candidates[0].FinishReason == "MAX_TOKENS" {
		return nil, fmt.Errorf("output truncated (finishReason: MAX_TOKENS): response exceeded output token limit")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return &port.OracleResponse{
		Text:      text.String(),
		ModelUsed: model,
	}, nil
}
