package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medai-go/internal/config"
)

type chunkRecorder struct{ chunks []string }

func (r *chunkRecorder) WriteMessage(_ int, data []byte) error {
	r.chunks = append(r.chunks, string(data))
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LLMConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		Model:      "medai-test",
		Generation: config.LLMGenerationConfig{Temperature: 0.3},
	})
}

func TestChatReturnsContent(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"<p>Rest well.</p>"}}]}`)
	})

	answer, err := client.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>Rest well.</p>", answer)

	assert.Equal(t, "medai-test", got.Model)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
	assert.Nil(t, got.MaxTokens)
}

func TestChatEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[]}`)
	})
	_, err := client.Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestChatNon200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	_, err := client.Chat(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestStreamChatMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"<p>Hel\"}}]}\n\n")
		_, _ = fmt.Fprint(w, ": keep-alive\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo</p>\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	rec := &chunkRecorder{}
	answer, err := client.StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, rec)
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello</p>", answer)
	assert.Equal(t, []string{"<p>Hel", "lo</p>"}, rec.chunks)
}
