package claude

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
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
)

// Oracle implements port.Oracle using the Anthropic Messages API.
type Oracle struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewOracle creates a Claude-backed oracle from a provider config.
func NewOracle(cfg *config.OracleProviderConfig) *Oracle {
	return newOracle(cfg, apiURL)
}

// NewOracleWithEndpoint creates an oracle pointing at a custom API endpoint (for testing).
func NewOracleWithEndpoint(cfg *config.OracleProviderConfig, endpoint string) *Oracle {
	return newOracle(cfg, endpoint)
}

func newOracle(cfg *config.OracleProviderConfig, endpoint string) *Oracle {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Oracle{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (o *Oracle) Complete(ctx context.Context, req port.OracleRequest) (*port.OracleResponse, error) {
	contentBlocks, err := buildContentBlocks(req)
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":       o.model,
		"max_tokens":  8192,
		"temperature": 0.1,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
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
	httpReq.Header.Set("x-api-key", o.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parser.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, parser.NewRateLimitError("claude", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody, o.model)
}

func buildContentBlocks(req port.OracleRequest) ([]map[string]interface{}, error) {
	var blocks []map[string]interface{}

	if len(req.Image) > 0 {
		switch req.ContentType {
		case "image/jpeg", "image/png":
		default:
			return nil, fmt.Errorf("unsupported content type for extraction: %s", req.ContentType)
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": req.ContentType,
				"data":       base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": req.Prompt,
	})

	return blocks, nil
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte, model string) (*port.OracleResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	if resp.StopReason == "max_tokens" {
		return nil, fmt.Errorf("output truncated (stop_reason: max_tokens): response exceeded output token limit")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &port.OracleResponse{
		Text:      text.String(),
		ModelUsed: model,
	}, nil
}
