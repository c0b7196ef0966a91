package config

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
)

//go:embed prompts/eyesy_system.md
var eyesySystemPrompt string

// Greeting is shown whenever a conversation starts. It is never sent to the
// model.
const Greeting = "I am EYESY Bot! Type what you want to draw and I'll do my best to code it up!"

// DefaultSystemPrompt returns the built in prompt describing EYESY modes.
func DefaultSystemPrompt() string {
	return eyesySystemPrompt
}

// SystemPrompt returns the contents of SystemPromptFile, or the built in
// prompt when none is configured.
func (c *Config) SystemPrompt() (string, error) {
	if c.SystemPromptFile == "" {
		return DefaultSystemPrompt(), nil
	}
	return ReadPrompt(c.SystemPromptFile)
}

func ReadPrompt(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read system prompt")
	}
	prompt := strings.TrimSpace(string(raw))
	if prompt == "" {
		return "", errors.Errorf("system prompt %s is empty", path)
	}
	return prompt, nil
}
