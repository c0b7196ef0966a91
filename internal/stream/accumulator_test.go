package stream

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	part string
	err  error
}

type fakeSource struct {
	steps []step
}

func (f *fakeSource) Recv() (string, error) {
	if len(f.steps) == 0 {
		return "", io.EOF
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.part, s.err
}

func fragments(parts ...string) *fakeSource {
	src := &fakeSource{}
	for _, p := range parts {
		src.steps = append(src.steps, step{part: p})
	}
	return src
}

func collect(acc *Accumulator) []string {
	var out []string
	for acc.Next() {
		out = append(out, acc.Text())
	}
	return out
}

func TestAccumulatorYieldsCumulativePrefixes(t *testing.T) {
	acc := NewAccumulator(fragments("Hel", "lo, ", "world"))

	assert.Equal(t, []string{"Hel", "Hello, ", "Hello, world"}, collect(acc))
	assert.NoError(t, acc.Err())
	assert.True(t, acc.Done())
	assert.Equal(t, "Hello, world", acc.Text())
}

func TestAccumulatorSkipsEmptyFragments(t *testing.T) {
	acc := NewAccumulator(fragments("", "a", "", "", "b", ""))

	assert.Equal(t, []string{"a", "ab"}, collect(acc))
}

func TestAccumulatorEmptyStream(t *testing.T) {
	acc := NewAccumulator(fragments())

	assert.Empty(t, collect(acc))
	assert.Equal(t, "", acc.Text())
	assert.NoError(t, acc.Err())
}

func TestAccumulatorTextOnFinalChunk(t *testing.T) {
	src := &fakeSource{steps: []step{{part: "a"}, {part: "b", err: io.EOF}}}
	acc := NewAccumulator(src)

	assert.Equal(t, []string{"a", "ab"}, collect(acc))
	assert.NoError(t, acc.Err())
}

func TestAccumulatorStopsOnError(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{steps: []step{{part: "par"}, {err: boom}, {part: "never"}}}
	acc := NewAccumulator(src)

	assert.Equal(t, []string{"par"}, collect(acc))
	require.ErrorIs(t, acc.Err(), boom)
	assert.False(t, acc.Next(), "not restartable")
	assert.Equal(t, "par", acc.Text())
}
