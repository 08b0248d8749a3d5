package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdrp/internal/config"
	"hdrp/internal/hdrperr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(config.LLMConfig{
		Provider:       "openai",
		APIKey:         "test-key",
		Model:          "test-model",
		BaseURL:        srv.URL,
		TimeoutSeconds: 5,
	})
}

func TestCompleteSendsJSONFormat(t *testing.T) {
	var gotReq chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": `{"ok":true}`}},
			},
		})
	})

	out, err := client.Complete(context.Background(), Request{
		Messages:    []Message{{Role: "user", Content: "plan this"}},
		Temperature: 0.3,
		MaxTokens:   1024,
		JSONOutput:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	assert.Equal(t, 1024, gotReq.MaxTokens)
}

func TestCompleteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.Equal(t, hdrperr.KindExternalUnavailable, hdrperr.KindOf(err))
}

func TestCompleteMissingKey(t *testing.T) {
	client := NewOpenAIClient(config.LLMConfig{BaseURL: "http://localhost:1"})
	_, err := client.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, hdrperr.KindInvalidArgument, hdrperr.KindOf(err))
}

func TestCompleteNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	_, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.Equal(t, hdrperr.KindParse, hdrperr.KindOf(err))
}
