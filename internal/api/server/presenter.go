package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/session"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// ndjsonPresenter streams one turn as newline delimited JSON. Errors raised
// before the first line become a plain JSON error reply with a status code.
type ndjsonPresenter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
	started bool
	final   string
}

func newNDJSONPresenter(w http.ResponseWriter) *ndjsonPresenter {
	flusher, _ := w.(http.Flusher)
	return &ndjsonPresenter{w: w, flusher: flusher, enc: json.NewEncoder(w)}
}

func (p *ndjsonPresenter) start() {
	if p.started {
		return
	}
	p.started = true
	p.w.Header().Set("Content-Type", "application/x-ndjson")
	p.w.Header().Set("Cache-Control", "no-cache")
	p.w.Header().Set("Connection", "keep-alive")
	p.w.WriteHeader(http.StatusOK)
}

func (p *ndjsonPresenter) send(resp ChatResponse) {
	p.start()
	if err := p.enc.Encode(resp); err != nil {
		return
	}
	if p.flusher != nil {
		p.flusher.Flush()
	}
}

// DisplayMessage is called with the user's own message once it is accepted.
func (p *ndjsonPresenter) DisplayMessage(transcript.Role, string) { p.start() }

func (p *ndjsonPresenter) ClearDisplay() {}

func (p *ndjsonPresenter) RepaintStreaming(partial string) {
	p.send(ChatResponse{Content: partial})
}

// FinishStreaming only records the reply; end writes the closing line once
// the outcome of the turn is known.
func (p *ndjsonPresenter) FinishStreaming(final string) {
	p.final = final
}

// end closes the stream for a turn that OnUserSubmit returned err for. A
// completed turn always gets a done line, even with an empty reply; a
// cancelled one gets an error line. Other failures were already reported
// through ShowError.
func (p *ndjsonPresenter) end(err error) {
	if !p.started {
		return
	}
	switch {
	case err == nil:
		p.send(ChatResponse{Content: p.final, Done: true})
	case errors.Is(err, session.ErrCancelled):
		_, kind := classify(err)
		p.send(ChatResponse{Error: err.Error(), Kind: kind})
	}
}

func (p *ndjsonPresenter) ShowError(err error) {
	if !p.started {
		writeError(p.w, err)
		p.started = true
		return
	}
	_, kind := classify(err)
	p.send(ChatResponse{Error: err.Error(), Kind: kind})
}

func (p *ndjsonPresenter) ShowNotice(text string) {
	if p.started {
		p.send(ChatResponse{Notice: text})
	}
}

// wsPresenter mirrors the conversation onto one websocket connection. Turns
// run on their own goroutine, so writes are serialised.
type wsPresenter struct {
	mu   sync.Mutex
	conn *websocket.Conn

	localLogger *logger.Logger
}

func (p *wsPresenter) send(frame ServerFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.WriteJSON(frame); err != nil {
		p.localLogger.Warn("websocket write failed: ", err)
	}
}

func (p *wsPresenter) DisplayMessage(role transcript.Role, content string) {
	p.send(ServerFrame{Type: FrameMessage, Role: role, Content: content})
}

func (p *wsPresenter) ClearDisplay() {
	p.send(ServerFrame{Type: FrameCleared})
}

func (p *wsPresenter) RepaintStreaming(partial string) {
	p.send(ServerFrame{Type: FramePartial, Content: partial})
}

func (p *wsPresenter) FinishStreaming(final string) {
	if final != "" {
		p.send(ServerFrame{Type: FrameFinal, Content: final})
	}
}

func (p *wsPresenter) ShowError(err error) {
	_, kind := classify(err)
	p.send(ServerFrame{Type: FrameError, Content: err.Error(), Kind: kind})
}

func (p *wsPresenter) ShowNotice(text string) {
	p.send(ServerFrame{Type: FrameNotice, Content: text})
}

// discard is the presenter for one-shot requests whose result is the
// HTTP response itself.
type discard struct{}

func (discard) DisplayMessage(transcript.Role, string) {}
func (discard) ClearDisplay()                          {}
func (discard) RepaintStreaming(string)                {}
func (discard) FinishStreaming(string)                 {}
func (discard) ShowError(error)                        {}
func (discard) ShowNotice(string)                      {}
