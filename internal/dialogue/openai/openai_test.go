package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/sidekick/internal/config"
	"github.com/nadzzz/sidekick/internal/conversation"
)

func TestComplete_SendsMappedRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama", req.Model)
		assert.Equal(t, []chatMessage{
			{Role: "system", Content: "dir"},
			{Role: "assistant", Content: "pergunta"},
			{Role: "user", Content: "resposta"},
		}, req.Messages)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Próxima pergunta"}}]}`))
	}))
	defer srv.Close()

	c := New(config.DialogueConfig{BaseURL: srv.URL + "/openai/v1/", APIKey: "gsk_test", Model: "llama"})
	got, err := c.Complete(context.Background(), []conversation.Turn{
		{Role: conversation.RoleSystem, Content: "dir"},
		{Role: conversation.RoleInterviewer, Content: "pergunta"},
		{Role: conversation.RoleCandidate, Content: "resposta"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Próxima pergunta", got)
}

func TestComplete_NoKey(t *testing.T) {
	c := New(config.DialogueConfig{BaseURL: "http://unused", Model: "m"})
	_, err := c.Complete(context.Background(), nil)
	assert.Error(t, err)
}

func TestComplete_HTTPFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status_non_2xx", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500); _, _ = w.Write([]byte("oops")) }},
		{"bad_json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not-json")) }},
		{"empty_choices", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"choices":[]}`)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := New(config.DialogueConfig{BaseURL: srv.URL, APIKey: "key", Model: "m"})
			_, err := c.Complete(context.Background(), []conversation.Turn{{Role: conversation.RoleCandidate, Content: "oi"}})
			assert.Error(t, err)
		})
	}
}
