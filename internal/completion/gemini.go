package completion

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"google.golang.org/genai"

	"github.com/bz888/eyesy-bot/internal/transcript"
)

const ProviderGemini = "gemini"

// GeminiClient streams completions from the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Name() string {
	return ProviderGemini
}

func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for model, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, &Error{Provider: ProviderGemini, Err: err}
		}
		if !slices.Contains(model.SupportedActions, "generateContent") {
			continue
		}
		names = append(names, strings.TrimPrefix(model.Name, "models/"))
	}
	return names, nil
}

// toGemini splits the transcript into a system instruction and the turn
// contents. Gemini names the assistant role "model".
func toGemini(messages []transcript.Message) (*genai.Content, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case transcript.RoleSystem:
			system = append(system, m.Content)
		case transcript.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser), contents
}

func (c *GeminiClient) Stream(ctx context.Context, req *Request) (Stream, error) {
	system, contents := toGemini(req.Messages)
	var config *genai.GenerateContentConfig
	if system != nil {
		config = &genai.GenerateContentConfig{SystemInstruction: system}
	}
	seq := c.client.Models.GenerateContentStream(ctx, req.Model, contents, config)
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
	done bool
}

func (s *geminiStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	resp, err, ok := s.next()
	if !ok {
		s.Close()
		return "", io.EOF
	}
	if err != nil {
		s.Close()
		return "", &Error{Provider: ProviderGemini, Err: err}
	}
	return resp.Text(), nil
}

func (s *geminiStream) Close() error {
	if !s.done {
		s.done = true
		s.stop()
	}
	return nil
}
