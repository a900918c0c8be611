package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"floodguard-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamServer(t *testing.T, lines []string, captured *ollamaChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}))
}

func TestChatStreamRelaysDeltas(t *testing.T) {
	var req ollamaChatRequest
	srv := streamServer(t, []string{
		`{"model":"llama3","message":{"role":"assistant","content":"Found 12 "},"done":false}`,
		``,
		`{"model":"llama3","message":{"role":"assistant","content":"projects."},"done":false}`,
		`{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`,
	}, &req)
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	var deltas []string
	err := p.ChatStream(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: "model", Content: "earlier"},
		{Role: llm.RoleUser, Content: "Pangasinan 2025"},
	}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	}, llm.WithTemperature(0.2), llm.WithMaxTokens(256))

	require.NoError(t, err)
	assert.Equal(t, []string{"Found 12 ", "projects."}, deltas)
	assert.True(t, req.Stream)
	assert.Equal(t, "llama3", req.Model)
	assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, 256, req.Options.NumPredict)
}

func TestChatCollectsReply(t *testing.T) {
	srv := streamServer(t, []string{
		`{"message":{"content":"Hello"},"done":false}`,
		`{"message":{"content":"!"},"done":true}`,
	}, nil)
	defer srv.Close()

	out, err := NewOllamaProvider(srv.URL, "m").Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, llm.WithModel("other"))
	require.NoError(t, err)
	assert.Equal(t, "Hello!", out)
}

func TestChatStreamErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()
		err := NewOllamaProvider(srv.URL, "m").ChatStream(context.Background(), nil, func(string) error { return nil })
		assert.ErrorContains(t, err, "status 404")
	})

	t.Run("inline error", func(t *testing.T) {
		srv := streamServer(t, []string{`{"error":"out of memory"}`}, nil)
		defer srv.Close()
		err := NewOllamaProvider(srv.URL, "m").ChatStream(context.Background(), nil, func(string) error { return nil })
		assert.ErrorContains(t, err, "out of memory")
	})

	t.Run("truncated", func(t *testing.T) {
		srv := streamServer(t, []string{`{"message":{"content":"par"},"done":false}`}, nil)
		defer srv.Close()
		err := NewOllamaProvider(srv.URL, "m").ChatStream(context.Background(), nil, func(string) error { return nil })
		assert.ErrorContains(t, err, "without done")
	})

	t.Run("handler stops", func(t *testing.T) {
		srv := streamServer(t, []string{
			`{"message":{"content":"a"},"done":false}`,
			`{"message":{"content":"b"},"done":false}`,
		}, nil)
		defer srv.Close()
		var got []string
		err := NewOllamaProvider(srv.URL, "m").ChatStream(context.Background(), nil, func(d string) error {
			got = append(got, d)
			return llm.ErrStopped
		})
		assert.NoError(t, err)
		assert.Equal(t, []string{"a"}, got)
	})
}
