package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tutorkit/internal/core/domain"
	"github.com/custodia-labs/tutorkit/internal/core/ports/driven"
)

// newTestService points the service at a stub API server.
func newTestService(t *testing.T, handler http.HandlerFunc) *UnderstandingService {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := NewUnderstandingService(Config{
		APIKey:            "test-key",
		BaseURL:           server.URL,
		RequestsPerSecond: -1,
	})
	require.NoError(t, err)
	return service
}

// completionBody wraps content in the chat completions response shape.
func completionBody(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	body, _ := json.Marshal(resp)
	return string(body)
}

func TestNewUnderstandingServiceRequiresAPIKey(t *testing.T) {
	_, err := NewUnderstandingService(Config{})
	assert.Error(t, err)
}

func TestCompleteReturnsRawJSON(t *testing.T) {
	var gotReq chatCompletionRequest
	var gotAuth string

	service := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(completionBody(`{"concepts":[]}`)))
	})

	raw, err := service.Complete(context.Background(), driven.CompletionRequest{
		System:     "You extract concepts.",
		Prompt:     "Extract concepts from this text.",
		SchemaName: "concept_graph",
		Schema:     json.RawMessage(`{"type":"object"}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"concepts":[]}`, string(raw))

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_schema", gotReq.ResponseFormat.Type)
	assert.Equal(t, "concept_graph", gotReq.ResponseFormat.JSONSchema.Name)
}

func TestCompleteMapsRateLimit(t *testing.T) {
	service := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := service.Complete(context.Background(), driven.CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestCompleteMapsServerError(t *testing.T) {
	service := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := service.Complete(context.Background(), driven.CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, domain.ErrServerError)
}

func TestCompleteRejectsNonJSONContent(t *testing.T) {
	service := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(completionBody("Sure, here is the JSON you asked for:")))
	})

	_, err := service.Complete(context.Background(), driven.CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	service := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := service.Complete(context.Background(), driven.CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	service := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	})

	_, err := service.Complete(context.Background(), driven.CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}
