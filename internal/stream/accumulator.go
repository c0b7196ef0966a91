package stream

import (
	"errors"
	"io"
	"strings"
)

// Source yields the fragments of one streamed response. Recv returns io.EOF
// once the stream is exhausted. An empty fragment means the chunk carried no
// text (a role-only delta, a keep-alive) and is skipped.
type Source interface {
	Recv() (string, error)
}

// Accumulator turns fragments into cumulative text, one value per non-empty
// fragment. It is used once per turn and cannot be restarted:
//
//	acc := stream.NewAccumulator(src)
//	for acc.Next() {
//		repaint(acc.Text())
//	}
//	if err := acc.Err(); err != nil { ... }
type Accumulator struct {
	src  Source
	buf  strings.Builder
	err  error
	done bool
}

func NewAccumulator(src Source) *Accumulator {
	return &Accumulator{src: src}
}

// Next blocks until the next non-empty fragment arrives and reports whether
// one did. It returns false at the end of the stream or on error.
func (a *Accumulator) Next() bool {
	if a.done {
		return false
	}
	for {
		part, err := a.src.Recv()
		if part != "" {
			a.buf.WriteString(part)
		}
		if err != nil {
			a.done = true
			if !errors.Is(err, io.EOF) {
				a.err = err
			}
			// the last chunk may carry both text and the end marker
			return part != "" && a.err == nil
		}
		if part != "" {
			return true
		}
	}
}

// Text is the whole message received so far.
func (a *Accumulator) Text() string {
	return a.buf.String()
}

// Err returns the first non-EOF error the source produced.
func (a *Accumulator) Err() error {
	return a.err
}

// Done reports whether the source has been exhausted or failed.
func (a *Accumulator) Done() bool {
	return a.done
}
