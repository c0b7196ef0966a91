package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bz888/eyesy-bot/internal/completion"
	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/persist"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

var (
	ErrTurnInFlight = errors.New("a response is still streaming")
	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrCancelled    = errors.New("turn cancelled")
)

// Session owns one conversation: the transcript, the model it is sent to and
// the turn currently streaming, if any. At most one turn runs at a time.
type Session struct {
	ID     string
	client completion.Client

	mu           sync.Mutex
	transcript   *transcript.Transcript
	model        string
	systemPrompt string
	active       *Turn

	localLogger *logger.Logger
}

type Option func(*Session)

func WithModel(model string) Option {
	return func(s *Session) { s.model = model }
}

func WithSystemPrompt(prompt string) Option {
	return func(s *Session) { s.systemPrompt = prompt }
}

func New(client completion.Client, opts ...Option) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		client: client,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transcript = transcript.New(s.systemPrompt)
	s.localLogger = logger.NewLogger("session " + s.ID[:8])
	return s
}

// Submit appends the user's message and returns the turn that streams the
// reply. The request is sent on the turn's first Next call. It fails with
// ErrTurnInFlight while another turn is unfinished.
func (s *Session) Submit(ctx context.Context, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrTurnInFlight
	}

	s.transcript.Append(transcript.Message{Role: transcript.RoleUser, Content: text})
	turnCtx, cancel := context.WithCancel(ctx)
	t := &Turn{
		session: s,
		ctx:     turnCtx,
		cancel:  cancel,
		req: &completion.Request{
			Model:    s.model,
			Messages: s.transcript.Snapshot(),
		},
	}
	s.active = t
	s.localLogger.Info("turn started, ", len(t.req.Messages), " messages to ", s.model)
	return t, nil
}

// finish releases the turn slot. The reply is appended only when the turn
// completed and is still the session's active turn, so a turn that was
// cancelled by Clear or Replace can never write into the new transcript.
func (s *Session) finish(t *Turn, reply string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != t {
		return
	}
	s.active = nil
	if ok {
		s.transcript.Append(transcript.Message{Role: transcript.RoleAssistant, Content: reply})
		s.localLogger.Info("turn finished, transcript has ", s.transcript.Len(), " messages")
	}
}

// cancelActive must be called with s.mu held.
func (s *Session) cancelActive() {
	if s.active == nil {
		return
	}
	s.localLogger.Warn("cancelling in-flight turn")
	s.active.cancel()
	s.active = nil
}

// Cancel stops the in-flight turn, discarding its partial reply. It reports
// whether there was one.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	busy := s.active != nil
	s.cancelActive()
	return busy
}

// Clear cancels any in-flight turn and resets the transcript to the
// current system prompt.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelActive()
	s.transcript.Reset(s.systemPrompt)
}

// Replace installs an imported transcript. Invalid input leaves the session
// untouched, including any turn in flight.
func (s *Session) Replace(messages []transcript.Message) error {
	if err := transcript.Validate(messages); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelActive()
	return s.transcript.Replace(messages)
}

func (s *Session) Snapshot() []transcript.Message {
	return s.transcript.Snapshot()
}

func (s *Session) Len() int {
	return s.transcript.Len()
}

// Export writes the transcript in the chat.json format.
func (s *Session) Export(w io.Writer) error {
	return persist.Export(w, s.transcript.Snapshot())
}

// LastReply is the most recent assistant message.
func (s *Session) LastReply() (string, bool) {
	m, ok := s.transcript.LastOf(transcript.RoleAssistant)
	return m.Content, ok
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel changes the model used from the next turn on.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// SetSystemPrompt changes the prompt installed by the next Clear. The live
// transcript keeps the prompt it started with.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
}

func (s *Session) SystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemPrompt
}
