package transcript

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three roles the completion API accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is one role-tagged entry of the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var ErrMalformed = errors.New("malformed transcript")

// MalformedError reports the first entry of an imported transcript that
// failed structural validation. Index is -1 when the document as a whole has
// the wrong shape.
type MalformedError struct {
	Index  int
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Index < 0 {
		return "malformed transcript: " + e.Reason
	}
	return fmt.Sprintf("malformed transcript: entry %d: %s", e.Index, e.Reason)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

// Validate checks every entry's role. Content is a Go string so its shape is
// already guaranteed by the type.
func Validate(messages []Message) error {
	for i, m := range messages {
		if m.Role == "" {
			return &MalformedError{Index: i, Reason: "missing role"}
		}
		if !m.Role.Valid() {
			return &MalformedError{Index: i, Reason: fmt.Sprintf("unrecognized role %q", m.Role)}
		}
	}
	return nil
}
