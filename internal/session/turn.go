package session

import (
	"context"
	"errors"

	"github.com/bz888/eyesy-bot/internal/completion"
	"github.com/bz888/eyesy-bot/internal/stream"
)

// Turn streams one assistant reply. Each successful Next makes the whole
// reply received so far available from Text. The turn must be drained
// until Next returns false, or closed, before the session accepts another
// submission.
type Turn struct {
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
	req     *completion.Request

	stream completion.Stream
	acc    *stream.Accumulator
	err    error
	closed bool
}

func (t *Turn) Next() bool {
	if t.closed {
		return false
	}
	if t.acc == nil {
		s, err := t.session.client.Stream(t.ctx, t.req)
		if err != nil {
			t.fail(err)
			return false
		}
		t.stream = s
		t.acc = stream.NewAccumulator(s)
	}

	if t.acc.Next() {
		if t.ctx.Err() == nil {
			return true
		}
		t.fail(t.ctx.Err())
		return false
	}
	if err := t.acc.Err(); err != nil {
		t.fail(err)
		return false
	}
	if err := t.ctx.Err(); err != nil {
		t.fail(err)
		return false
	}
	t.end(true)
	return false
}

// Text is the reply accumulated so far.
func (t *Turn) Text() string {
	if t.acc == nil {
		return ""
	}
	return t.acc.Text()
}

// Err is nil for a completed turn, ErrCancelled when the turn was cancelled,
// and a *completion.Error when the upstream request failed.
func (t *Turn) Err() error {
	return t.err
}

// Close abandons the turn. A turn that has not completed is discarded and
// nothing is appended to the transcript.
func (t *Turn) Close() {
	if t.closed {
		return
	}
	t.err = ErrCancelled
	t.end(false)
}

func (t *Turn) fail(err error) {
	if t.ctx.Err() != nil || errors.Is(err, context.Canceled) {
		t.err = ErrCancelled
	} else {
		var cerr *completion.Error
		if !errors.As(err, &cerr) {
			err = &completion.Error{Provider: "stream", Err: err}
		}
		t.err = err
		t.session.localLogger.Error("turn failed: ", err)
	}
	t.end(false)
}

func (t *Turn) end(ok bool) {
	t.closed = true
	t.session.finish(t, t.Text(), ok)
	t.cancel()
	if t.stream != nil {
		t.stream.Close()
	}
}
