package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdigitizer/internal/config"
	"labdigitizer/internal/parser"
	"labdigitizer/internal/parser/claude"
	"labdigitizer/internal/port"
)

func newTestOracle(serverURL string) *claude.Oracle {
	cfg := &config.OracleProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
	}
	return claude.NewOracleWithEndpoint(cfg, serverURL)
}

func TestClaudeOracle_ImageRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])

		msg := reqBody["messages"].([]interface{})[0].(map[string]interface{})
		content := msg["content"].([]interface{})
		require.Len(t, content, 2)
		assert.Equal(t, "image", content[0].(map[string]interface{})["type"])
		assert.Equal(t, "text", content[1].(map[string]interface{})["type"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "```json\n{\"records\": []}\n```"},
			},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	resp, err := newTestOracle(server.URL).Complete(context.Background(), port.OracleRequest{
		Prompt:      "extract",
		Image:       []byte{0xFF, 0xD8},
		ContentType: "image/jpeg",
	})

	require.NoError(t, err)
	assert.Equal(t, "```json\n{\"records\": []}\n```", resp.Text)
	assert.Equal(t, "claude-sonnet-4-20250514", resp.ModelUsed)
}

func TestClaudeOracle_TextOnlyRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		msg := reqBody["messages"].([]interface{})[0].(map[string]interface{})
		assert.Len(t, msg["content"].([]interface{}), 1)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{{"type": "text", "text": "{}"}},
		})
	}))
	defer server.Close()

	resp, err := newTestOracle(server.URL).Complete(context.Background(), port.OracleRequest{Prompt: "merge"})

	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
}

func TestClaudeOracle_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "15")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL).Complete(context.Background(), port.OracleRequest{Prompt: "x"})

	var rlErr *parser.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "claude", rlErr.Provider)
	assert.Equal(t, 15.0, rlErr.RetryAfter.Seconds())
}

func TestClaudeOracle_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": "{\"records\": ["}},
			"stop_reason": "max_tokens",
		})
	}))
	defer server.Close()

	_, err := newTestOracle(server.URL).Complete(context.Background(), port.OracleRequest{Prompt: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestClaudeOracle_UnsupportedContentType(t *testing.T) {
	_, err := newTestOracle("http://unused").Complete(context.Background(), port.OracleRequest{
		Prompt:      "x",
		Image:       []byte("GIF89a"),
		ContentType: "image/gif",
	})

	assert.Error(t, err)
}
