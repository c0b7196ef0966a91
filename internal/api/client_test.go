package api

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz888/eyesy-bot/internal/api/server"
	"github.com/bz888/eyesy-bot/internal/completion"
	"github.com/bz888/eyesy-bot/internal/session"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

type sliceStream struct{ parts []string }

func (s *sliceStream) Recv() (string, error) {
	if len(s.parts) == 0 {
		return "", io.EOF
	}
	p := s.parts[0]
	s.parts = s.parts[1:]
	return p, nil
}

func (s *sliceStream) Close() error { return nil }

type echoClient struct{ err error }

func (c echoClient) Stream(_ context.Context, req *completion.Request) (completion.Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &sliceStream{parts: []string{"re: ", req.Messages[len(req.Messages)-1].Content}}, nil
}

type staticModels []string

func (m staticModels) Models(context.Context) ([]string, error) { return m, nil }

func newTestClient(t *testing.T, cc completion.Client) (*Client, *session.Session) {
	t.Helper()
	sess := session.New(cc, session.WithSystemPrompt("sys"), session.WithModel("gpt-4"))
	srv := httptest.NewServer(server.New(sess, staticModels{"gpt-4", "gemini-1.5-flash"}).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client()), sess
}

func TestClientChat(t *testing.T) {
	c, sess := newTestClient(t, echoClient{})
	ctx := context.Background()

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.ServerWorking)

	var partials []string
	final, err := c.Chat(ctx, "triangle", func(line server.ChatResponse) {
		if !line.Done {
			partials = append(partials, line.Content)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "re: triangle", final)
	assert.Equal(t, []string{"re: ", "re: triangle"}, partials)
	assert.Equal(t, 3, sess.Len())
}

func TestClientChatErrors(t *testing.T) {
	c, _ := newTestClient(t, echoClient{err: &completion.Error{Provider: completion.ProviderOpenAI, Err: errors.New("boom")}})

	_, err := c.Chat(context.Background(), "", nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "empty", apiErr.Kind)

	_, err = c.Chat(context.Background(), "hi", nil)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "completion", apiErr.Kind)
	assert.Contains(t, apiErr.Message, "boom")
}

func TestClientModels(t *testing.T) {
	c, sess := newTestClient(t, echoClient{})
	ctx := context.Background()

	models, err := c.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4", "gemini-1.5-flash"}, models)

	require.NoError(t, c.SetModel(ctx, "gemini-1.5-flash"))
	model, err := c.Model(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", model)
	assert.Equal(t, "gemini-1.5-flash", sess.Model())
}

func TestClientExportImportClear(t *testing.T) {
	c, sess := newTestClient(t, echoClient{})
	ctx := context.Background()
	_, err := c.Chat(ctx, "a", nil)
	require.NoError(t, err)

	raw, err := c.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"re: a"`)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 1, sess.Len())

	got, err := c.Import(ctx, strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, got, sess.Snapshot())

	_, err = c.Import(ctx, strings.NewReader(`[{"role":"robot","content":"x"}]`))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "malformed", apiErr.Kind)
	assert.Equal(t, got, sess.Snapshot())
	assert.Equal(t, transcript.RoleAssistant, got[2].Role)
}

type silentClient struct{}

func (silentClient) Stream(context.Context, *completion.Request) (completion.Stream, error) {
	return &sliceStream{}, nil
}

func TestClientChatEmptyReplyIsDone(t *testing.T) {
	c, _ := newTestClient(t, silentClient{})

	var sawDone bool
	final, err := c.Chat(context.Background(), "quiet please", func(line server.ChatResponse) {
		sawDone = sawDone || line.Done
	})
	require.NoError(t, err)
	assert.Empty(t, final)
	assert.True(t, sawDone)
}
