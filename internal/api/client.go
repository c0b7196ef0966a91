package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bz888/eyesy-bot/internal/api/server"
	"github.com/bz888/eyesy-bot/internal/logger"
	"github.com/bz888/eyesy-bot/internal/persist"
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// DefaultBaseURL is where `eyesy serve` listens unless told otherwise.
const DefaultBaseURL = "http://localhost:8080"

// Error is a failure reported by the server, either as an error reply or
// as an error line inside a chat stream.
type Error struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server error (%d %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to a running eyesy server.
type Client struct {
	baseURL string
	http    *http.Client

	localLogger *logger.Logger
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        httpClient,
		localLogger: logger.NewLogger("api client"),
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.localLogger.Error("request ", method, " ", path, " failed: ", err)
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	var body server.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return &Error{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	return &Error{StatusCode: resp.StatusCode, Kind: body.Kind, Message: body.Error}
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Status(ctx context.Context) (server.StatusResponse, error) {
	var status server.StatusResponse
	err := c.getJSON(ctx, "/status", &status)
	return status, err
}

func (c *Client) Models(ctx context.Context) ([]string, error) {
	var models []string
	if err := c.getJSON(ctx, "/models", &models); err != nil {
		return nil, err
	}
	return models, nil
}

func (c *Client) Model(ctx context.Context) (string, error) {
	var resp server.ModelResponse
	err := c.getJSON(ctx, "/model", &resp)
	return resp.Model, err
}

func (c *Client) SetModel(ctx context.Context, model string) error {
	return c.postJSON(ctx, "/model", server.ModelRequest{Model: model}, nil)
}

// Chat submits text and calls onLine for every line the server streams
// back. It returns the final reply, or the error carried by an error line.
func (c *Client) Chat(ctx context.Context, text string, onLine func(server.ChatResponse)) (string, error) {
	raw, err := json.Marshal(server.ChatRequest{Text: text})
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, "/chat", "application/json", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	var final string
	var streamErr error
	for scanner.Scan() {
		var line server.ChatResponse
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			c.localLogger.Error("failed to decode chat line: ", err)
			continue
		}
		if onLine != nil {
			onLine(line)
		}
		switch {
		case line.Error != "":
			streamErr = &Error{StatusCode: resp.StatusCode, Kind: line.Kind, Message: line.Error}
		case line.Done:
			final = line.Content
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if streamErr != nil {
		return "", streamErr
	}
	return final, nil
}

func (c *Client) Clear(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/clear", "", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Export downloads the conversation as a chat.json document.
func (c *Client) Export(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/chat.json", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Import replaces the server's conversation with the chat.json document in
// r and returns the conversation the server now holds.
func (c *Client) Import(ctx context.Context, r io.Reader) ([]transcript.Message, error) {
	resp, err := c.do(ctx, http.MethodPost, "/chat.json", persist.MimeType, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var messages []transcript.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, err
	}
	return messages, nil
}
