package transcript

import "sync"

// Transcript is the ordered conversation sent to the model on every turn.
// The first message is normally the system prompt; Replace may install a
// transcript without one.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

func New(systemPrompt string) *Transcript {
	t := &Transcript{}
	t.Reset(systemPrompt)
	return t
}

func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
}

// Reset discards every message and leaves only the system prompt.
func (t *Transcript) Reset(systemPrompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = []Message{{Role: RoleSystem, Content: systemPrompt}}
}

// Replace installs messages verbatim. Nothing is mutated when validation fails.
func (t *Transcript) Replace(messages []Message) error {
	if err := Validate(messages); err != nil {
		return err
	}
	installed := make([]Message, len(messages))
	copy(installed, messages)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = installed
	return nil
}

// Snapshot returns a copy that callers may keep or mutate freely.
func (t *Transcript) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// LastOf returns the most recent message with the given role.
func (t *Transcript) LastOf(role Role) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == role {
			return t.messages[i], true
		}
	}
	return Message{}, false
}
