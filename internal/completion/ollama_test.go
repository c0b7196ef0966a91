package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz888/eyesy-bot/internal/transcript"
)

func TestOllamaStreamReadsUntilDone(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"Hi"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":" there"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`)
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"ignored"},"done":false}`)
	}))
	defer srv.Close()

	c, err := NewOllamaClient(srv.URL, srv.Client())
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), &Request{
		Model:    "llama3",
		Messages: []transcript.Message{{Role: transcript.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)

	parts, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there"}, parts)
	assert.Equal(t, "llama3", got.Model)
	assert.True(t, got.Stream)
}

func TestOllamaStreamErrorLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	c, err := NewOllamaClient(srv.URL, srv.Client())
	require.NoError(t, err)
	s, err := c.Stream(context.Background(), &Request{Model: "nope"})
	require.NoError(t, err)

	_, err = drain(t, s)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "not found")
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"llama3:latest","details":{"families":null}},{"name":"mistral:7b","details":{"families":["llama"]}}]}`)
	}))
	defer srv.Close()

	c, err := NewOllamaClient(srv.URL, srv.Client())
	require.NoError(t, err)

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "mistral:7b"}, models)
}

func TestFamiliesNull(t *testing.T) {
	var d modelDetails
	require.NoError(t, json.Unmarshal([]byte(`{"families":null}`), &d))
	assert.NotNil(t, d.Families)
	assert.Empty(t, d.Families)
}
