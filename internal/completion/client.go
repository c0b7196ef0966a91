package completion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bz888/eyesy-bot/internal/transcript"
)

// Request is one chat-completion call: the whole transcript plus the model.
type Request struct {
	Model    string
	Messages []transcript.Message
}

// Stream delivers the fragments of one response. Recv returns io.EOF after
// the last fragment; any other error is an *Error. Close releases the
// underlying connection and may be called at any time.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type Client interface {
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Provider is a Client that can also enumerate the models it serves.
type Provider interface {
	Client
	Name() string
	ListModels(ctx context.Context) ([]string, error)
}

// Error is returned for any failure talking to the upstream API, whether
// the request could not be sent, was refused, or broke mid-stream.
type Error struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClientConfig holds the endpoints of an HTTP provider.
type ClientConfig struct {
	BaseURL    string
	ModelsPath string
	ChatPath   string
}

type httpClient struct {
	http      *http.Client
	modelsUrl *url.URL
	chatUrl   *url.URL
}

func newHTTPClient(config ClientConfig, hc *http.Client) (*httpClient, error) {
	if hc == nil {
		hc = &http.Client{}
	}
	base := config.BaseURL
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", config.BaseURL, err)
	}
	return &httpClient{
		http:      hc,
		modelsUrl: baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(config.ModelsPath, "/")}),
		chatUrl:   baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(config.ChatPath, "/")}),
	}, nil
}

func (c *httpClient) GetModelsURL() string {
	return c.modelsUrl.String()
}

func (c *httpClient) GetChatURL() string {
	return c.chatUrl.String()
}

func toWire(messages []transcript.Message) []chatMessage {
	out := make([]chatMessage, len(messages))
	for i, m := range messages {
		out[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
