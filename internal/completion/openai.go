package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/bz888/eyesy-bot/internal/logger"
)

const ProviderOpenAI = "openai"

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient streams chat completions from an OpenAI compatible API.
type OpenAIClient struct {
	*httpClient
	apiKey string
}

// NewOpenAIClient creates a client for baseURL; an empty baseURL means the
// public OpenAI endpoint.
func NewOpenAIClient(baseURL, apiKey string, hc *http.Client) (*OpenAIClient, error) {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	c, err := newHTTPClient(ClientConfig{
		BaseURL:    baseURL,
		ModelsPath: "models",
		ChatPath:   "chat/completions",
	}, hc)
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{httpClient: c, apiKey: apiKey}, nil
}

type openAIChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type openAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
}

type openAIChatChoice struct {
	Delta        openAIChatDelta `json:"delta"`
	FinishReason *string         `json:"finish_reason,omitempty"`
	Index        int             `json:"index"`
}

type openAIChatDelta struct {
	Content *string `json:"content,omitempty"`
	Role    *string `json:"role,omitempty"`
}

type openAIModelsResponse struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

type openAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) Name() string {
	return ProviderOpenAI
}

func (c *OpenAIClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// ListModels returns the chat models owned by OpenAI, sorted by id.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetModelsURL(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: ProviderOpenAI, StatusCode: resp.StatusCode, Err: decodeOpenAIError(resp.Body)}
	}

	var response openAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &Error{Provider: ProviderOpenAI, Err: fmt.Errorf("decode models: %w", err)}
	}

	names := make([]string, 0, len(response.Data))
	for _, model := range response.Data {
		if model.ID == "" || !isChatModel(model.ID) {
			continue
		}
		names = append(names, model.ID)
	}
	sort.Strings(names)
	return names, nil
}

func isChatModel(id string) bool {
	for _, prefix := range []string{"gpt-", "o1", "o3", "o4", "chatgpt-"} {
		if strings.HasPrefix(id, prefix) {
			return !strings.Contains(id, "instruct") && !strings.Contains(id, "realtime") && !strings.Contains(id, "audio")
		}
	}
	return false
}

func (c *OpenAIClient) Stream(ctx context.Context, req *Request) (Stream, error) {
	localLogger := logger.NewLogger("openai stream chat")

	bts, err := json.Marshal(openAIChatRequest{
		Model:    req.Model,
		Messages: toWire(req.Messages),
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GetChatURL(), bytes.NewReader(bts))
	if err != nil {
		return nil, err
	}
	c.setHeaders(request)
	request.Header.Set("Accept", "text/event-stream")

	response, err := c.http.Do(request)
	if err != nil {
		localLogger.Error("Failed to send chat request: ", err)
		return nil, &Error{Provider: ProviderOpenAI, Err: err}
	}

	if response.StatusCode != http.StatusOK {
		defer response.Body.Close()
		cause := decodeOpenAIError(response.Body)
		localLogger.Error("Received error response: ", cause)
		return nil, &Error{Provider: ProviderOpenAI, StatusCode: response.StatusCode, Err: cause}
	}

	return &sseStream{body: response.Body, scanner: newLineScanner(response.Body)}, nil
}

func decodeOpenAIError(r io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil {
		return fmt.Errorf("read error body: %w", err)
	}
	var errResp openAIErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil || errResp.Error.Message == "" {
		if len(bytes.TrimSpace(raw)) == 0 {
			return errors.New("unknown error")
		}
		return errors.New(strings.TrimSpace(string(raw)))
	}
	return errors.New(errResp.Error.Message)
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 512*1024)
	return scanner
}

// sseStream reads "data: {...}" events until "data: [DONE]".
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data:")) {
			// blank separators, comments and event names
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if string(data) == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk openAIChatResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			s.done = true
			return "", &Error{Provider: ProviderOpenAI, Err: fmt.Errorf("decode chunk: %w", err)}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == nil {
			return "", nil
		}
		return *chunk.Choices[0].Delta.Content, nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", &Error{Provider: ProviderOpenAI, Err: fmt.Errorf("scanner error: %w", err)}
	}
	// connection closed without [DONE]; treat what arrived as complete
	return "", io.EOF
}

func (s *sseStream) Close() error {
	s.done = true
	return s.body.Close()
}
