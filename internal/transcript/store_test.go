package transcript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetLeavesOnlySystemPrompt(t *testing.T) {
	tr := New("be helpful")
	tr.Append(Message{Role: RoleUser, Content: "hi"})
	tr.Append(Message{Role: RoleAssistant, Content: "hello"})
	require.Equal(t, 3, tr.Len())

	tr.Reset("be terse")

	got := tr.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Equal(t, "be terse", got[0].Content)
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := New("sys")
	snap := tr.Snapshot()
	snap[0].Content = "changed"
	snap = append(snap, Message{Role: RoleUser, Content: "x"})

	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, "sys", tr.Snapshot()[0].Content)
}

func TestReplaceAcceptsTranscriptWithoutSystemMessage(t *testing.T) {
	tr := New("sys")
	err := tr.Replace([]Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, tr.Snapshot())
}

func TestReplaceRejectsUnknownRoleWithoutMutating(t *testing.T) {
	tr := New("sys")
	tr.Append(Message{Role: RoleUser, Content: "keep me"})
	before := tr.Snapshot()

	err := tr.Replace([]Message{
		{Role: RoleSystem, Content: "other"},
		{Role: "bogus", Content: "x"},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 1, malformed.Index)
	assert.Equal(t, before, tr.Snapshot())
}

func TestReplaceCopiesInput(t *testing.T) {
	tr := New("sys")
	in := []Message{{Role: RoleSystem, Content: "a"}}
	require.NoError(t, tr.Replace(in))
	in[0].Content = "b"
	assert.Equal(t, "a", tr.Snapshot()[0].Content)
}

func TestLastOf(t *testing.T) {
	tr := New("sys")
	_, ok := tr.LastOf(RoleAssistant)
	assert.False(t, ok)

	tr.Append(Message{Role: RoleUser, Content: "q1"})
	tr.Append(Message{Role: RoleAssistant, Content: "a1"})
	tr.Append(Message{Role: RoleUser, Content: "q2"})
	tr.Append(Message{Role: RoleAssistant, Content: "a2"})

	m, ok := tr.LastOf(RoleAssistant)
	require.True(t, ok)
	assert.Equal(t, "a2", m.Content)
}

func TestValidateMissingRole(t *testing.T) {
	err := Validate([]Message{{Content: "no role"}})
	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 0, malformed.Index)
	assert.Equal(t, "missing role", malformed.Reason)
}
