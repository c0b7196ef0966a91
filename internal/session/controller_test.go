package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bz888/eyesy-bot/internal/completion"
	"github.com/bz888/eyesy-bot/internal/persist"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

const greeting = "I am EYESY Bot!"

type displayed struct {
	Role    transcript.Role
	Content string
}

// recorder is a Presenter that keeps what would be on screen.
type recorder struct {
	mu       sync.Mutex
	screen   []displayed
	repaints []string
	finals   []string
	errs     []error
	notices  []string
	clears   int
}

func (r *recorder) DisplayMessage(role transcript.Role, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen = append(r.screen, displayed{role, content})
}

func (r *recorder) ClearDisplay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screen = nil
	r.clears++
}

func (r *recorder) RepaintStreaming(partial string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repaints = append(r.repaints, partial)
}

func (r *recorder) FinishStreaming(final string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, final)
}

func (r *recorder) ShowError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) ShowNotice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, text)
}

func newTestController(client completion.Client, opts ...ControllerOption) (*Controller, *recorder) {
	view := &recorder{}
	opts = append([]ControllerOption{WithGreeting(greeting)}, opts...)
	c := NewController(New(client, WithSystemPrompt("sys")), view, opts...)
	c.Start()
	return c, view
}

func TestStartShowsGreetingOutsideTranscript(t *testing.T) {
	c, view := newTestController(&echoClient{})

	assert.Equal(t, []displayed{{transcript.RoleAssistant, greeting}}, view.screen)
	assert.Equal(t, 1, c.Session().Len())
}

func TestOnUserSubmitRepaintsAndFinishes(t *testing.T) {
	c, view := newTestController(&echoClient{})

	require.NoError(t, c.OnUserSubmit(context.Background(), "circle"))

	assert.Equal(t, []displayed{
		{transcript.RoleAssistant, greeting},
		{transcript.RoleUser, "circle"},
	}, view.screen)
	assert.Equal(t, []string{"re: ", "re: circle"}, view.repaints)
	assert.Equal(t, []string{"re: circle"}, view.finals)
	assert.Empty(t, view.errs)
	assert.Equal(t, 3, c.Session().Len())
}

func TestOnUserSubmitShowsCompletionError(t *testing.T) {
	client := new(MockClient)
	client.On("Stream", mock.Anything, mock.Anything).
		Return(nil, &completion.Error{Provider: completion.ProviderOllama, Err: errors.New("connection refused")})
	c, view := newTestController(client)

	err := c.OnUserSubmit(context.Background(), "hi")
	var cerr *completion.Error
	require.ErrorAs(t, err, &cerr)

	assert.Equal(t, []string{""}, view.finals)
	require.Len(t, view.errs, 1)
	assert.Contains(t, view.errs[0].Error(), "connection refused")
	assert.Equal(t, 2, c.Session().Len())
}

func TestOnUserSubmitRejectsWhileBusy(t *testing.T) {
	client := &blockingClient{parts: make(chan string)}
	c, view := newTestController(client)

	done := make(chan error)
	go func() { done <- c.OnUserSubmit(context.Background(), "first") }()

	client.parts <- "partial"
	err := c.OnUserSubmit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(client.parts)
	require.NoError(t, <-done)
	assert.Equal(t, 3, c.Session().Len())

	view.mu.Lock()
	defer view.mu.Unlock()
	require.Len(t, view.errs, 1)
	assert.ErrorIs(t, view.errs[0], ErrTurnInFlight)
}

func TestClearDuringStreamDiscardsPartial(t *testing.T) {
	client := &blockingClient{parts: make(chan string)}
	c, view := newTestController(client)

	done := make(chan error)
	go func() { done <- c.OnUserSubmit(context.Background(), "first") }()
	client.parts <- "half a rep"

	c.OnClearRequested()
	assert.ErrorIs(t, <-done, ErrCancelled)

	assert.Equal(t, []transcript.Message{{Role: transcript.RoleSystem, Content: "sys"}}, c.Session().Snapshot())
	view.mu.Lock()
	defer view.mu.Unlock()
	assert.Equal(t, []displayed{{transcript.RoleAssistant, greeting}}, view.screen)
	assert.Equal(t, []string{""}, view.finals)
	assert.Contains(t, view.notices, "Response cancelled.")
}

func TestOnClearRequestedResets(t *testing.T) {
	c, view := newTestController(&echoClient{})
	require.NoError(t, c.OnUserSubmit(context.Background(), "a"))
	require.NoError(t, c.OnUserSubmit(context.Background(), "b"))

	c.OnClearRequested()
	assert.Equal(t, 1, c.Session().Len())
	assert.Equal(t, []displayed{{transcript.RoleAssistant, greeting}}, view.screen)
}

func TestExportThenImportReplays(t *testing.T) {
	c, _ := newTestController(&echoClient{})
	require.NoError(t, c.OnUserSubmit(context.Background(), "a"))
	raw, err := c.OnExportRequested()
	require.NoError(t, err)

	other, view := newTestController(&echoClient{})
	require.NoError(t, other.OnImportRequested(strings.NewReader(string(raw))))

	assert.Equal(t, c.Session().Snapshot(), other.Session().Snapshot())
	assert.Equal(t, []displayed{
		{transcript.RoleAssistant, greeting},
		{transcript.RoleUser, "a"},
		{transcript.RoleAssistant, "re: a"},
	}, view.screen)
}

func TestImportBogusRoleLeavesConversation(t *testing.T) {
	c, view := newTestController(&echoClient{})
	require.NoError(t, c.OnUserSubmit(context.Background(), "a"))
	before := c.Session().Snapshot()
	screen := append([]displayed(nil), view.screen...)

	err := c.OnImportRequested(strings.NewReader(`[{"role":"user","content":"x"},{"role":"bogus","content":"y"}]`))
	assert.ErrorIs(t, err, transcript.ErrMalformed)

	assert.Equal(t, before, c.Session().Snapshot())
	assert.Equal(t, screen, view.screen)
	require.Len(t, view.errs, 1)
}

func TestImportSyntaxErrorLeavesConversation(t *testing.T) {
	c, view := newTestController(&echoClient{})
	err := c.OnImportRequested(strings.NewReader(`[{"role":`))

	var perr *persist.ParseError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, c.Session().Len())
	assert.Len(t, view.errs, 1)
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	c, view := newTestController(&echoClient{})
	require.NoError(t, c.OnUserSubmit(context.Background(), "a"))

	path := filepath.Join(dir, "chat.json")
	require.NoError(t, c.SaveFile(path))
	assert.Contains(t, view.notices, "Saved conversation to "+path)

	other, _ := newTestController(&echoClient{})
	require.NoError(t, other.LoadFile(path))
	assert.Equal(t, c.Session().Snapshot(), other.Session().Snapshot())

	txt := filepath.Join(dir, "chat.txt")
	require.NoError(t, os.WriteFile(txt, []byte("[]"), 0o644))
	assert.ErrorIs(t, other.LoadFile(txt), persist.ErrNotJSONFile)
}

func TestTokenBudgetWarns(t *testing.T) {
	counter, err := transcript.NewTokenCounter("gpt-4")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}

	c, view := newTestController(&echoClient{}, WithTokenBudget(counter, 10))
	require.NoError(t, c.OnUserSubmit(context.Background(), "draw a spiral of circles that pulse with the audio input"))

	assert.Greater(t, c.Tokens(), 10)
	require.NotEmpty(t, view.notices)
	assert.Contains(t, view.notices[len(view.notices)-1], "token budget")
	assert.Equal(t, 3, c.Session().Len(), "budget only warns")
}

func TestTokensWithoutCounter(t *testing.T) {
	c, _ := newTestController(&echoClient{})
	assert.Equal(t, -1, c.Tokens())
}
