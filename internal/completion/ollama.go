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
	"time"

	"github.com/bz888/eyesy-bot/internal/logger"
)

const ProviderOllama = "ollama"

const DefaultOllamaHost = "http://localhost:11434"

// OllamaClient streams chat completions from a local Ollama server.
type OllamaClient struct {
	*httpClient
}

func NewOllamaClient(host string, hc *http.Client) (*OllamaClient, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	c, err := newHTTPClient(ClientConfig{
		BaseURL:    host,
		ModelsPath: "/api/tags",
		ChatPath:   "/api/chat",
	}, hc)
	if err != nil {
		return nil, err
	}
	return &OllamaClient{httpClient: c}, nil
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaMessageResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   chatMessage `json:"message"`
	Done      bool        `json:"done"`
	Error     string      `json:"error,omitempty"`
}

type modelsResponse struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    modelDetails `json:"details"`
}

type Families []string

type modelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          Families `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// UnmarshalJSON handles the custom unmarshalling for Families.
func (f *Families) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Families{}
		return nil
	}

	var families []string
	if err := json.Unmarshal(data, &families); err != nil {
		return err
	}
	*f = Families(families)
	return nil
}

func (c *OllamaClient) Name() string {
	return ProviderOllama
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetModelsURL(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Provider: ProviderOllama, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: ProviderOllama, StatusCode: resp.StatusCode, Err: errors.New("failed to fetch data: " + resp.Status)}
	}

	var response modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &Error{Provider: ProviderOllama, Err: fmt.Errorf("decode models: %w", err)}
	}

	names := make([]string, len(response.Models))
	for i, model := range response.Models {
		names[i] = model.Name
	}
	return names, nil
}

func (c *OllamaClient) Stream(ctx context.Context, req *Request) (Stream, error) {
	localLogger := logger.NewLogger("ollama stream chat")

	bts, err := json.Marshal(ollamaChatRequest{
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
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/x-ndjson")

	response, err := c.http.Do(request)
	if err != nil {
		localLogger.Error("Failed to request on ollama chat: ", err)
		return nil, &Error{Provider: ProviderOllama, Err: err}
	}
	if response.StatusCode != http.StatusOK {
		defer response.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(response.Body, 64*1024))
		var body ollamaMessageResponse
		cause := errors.New(response.Status)
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			cause = errors.New(body.Error)
		}
		return nil, &Error{Provider: ProviderOllama, StatusCode: response.StatusCode, Err: cause}
	}

	return &ndjsonStream{body: response.Body, scanner: newLineScanner(response.Body)}, nil
}

// ndjsonStream reads one JSON object per line until one reports done.
type ndjsonStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *ndjsonStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var apiResp ollamaMessageResponse
		if err := json.Unmarshal(line, &apiResp); err != nil {
			s.done = true
			return "", &Error{Provider: ProviderOllama, Err: fmt.Errorf("decode chunk: %w", err)}
		}
		if apiResp.Error != "" {
			s.done = true
			return "", &Error{Provider: ProviderOllama, Err: errors.New(apiResp.Error)}
		}
		if apiResp.Done {
			s.done = true
			return apiResp.Message.Content, io.EOF
		}
		return apiResp.Message.Content, nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return "", &Error{Provider: ProviderOllama, Err: fmt.Errorf("scanner error: %w", err)}
	}
	return "", io.EOF
}

func (s *ndjsonStream) Close() error {
	s.done = true
	return s.body.Close()
}
