package transcript

import (
	"fmt"

	"github.com/weaviate/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// per-message framing overhead of the chat format
const tokensPerMessage = 4

// TokenCounter estimates how many prompt tokens a transcript costs.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("load %s encoding: %w", defaultEncoding, err)
		}
	}
	return &TokenCounter{enc: enc}, nil
}

func (c *TokenCounter) Count(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(c.enc.Encode(string(m.Role), nil, nil))
		total += len(c.enc.Encode(m.Content, nil, nil))
	}
	return total
}
