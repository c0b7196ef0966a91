package server

import (
	"github.com/bz888/eyesy-bot/internal/transcript"
)

// StatusResponse answers GET /status.
type StatusResponse struct {
	PortWorking   bool `json:"port_working"`
	ServerWorking bool `json:"server_working"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse is one ndjson line of a POST /chat reply. Content is the
// whole reply so far, not a delta.
type ChatResponse struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Notice  string `json:"notice,omitempty"`
}

// ModelRequest is the body of POST /model.
type ModelRequest struct {
	Model string `json:"model"`
}

type ModelResponse struct {
	Model string `json:"model"`
}

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is "parse" or "malformed" for rejected imports, "busy" when a
	// turn is in flight.
	Kind string `json:"kind,omitempty"`
}

// Frame types sent over /ws.
const (
	FramePartial = "partial"
	FrameFinal   = "final"
	FrameError   = "error"
	FrameCleared = "cleared"
	FrameMessage = "message"
	FrameNotice  = "notice"
)

// ClientFrame is a message from a websocket client: {"type":"submit","text":...}
// or {"type":"clear"}.
type ClientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerFrame is a message to a websocket client.
type ServerFrame struct {
	Type    string          `json:"type"`
	Role    transcript.Role `json:"role,omitempty"`
	Content string          `json:"content,omitempty"`
	Kind    string          `json:"kind,omitempty"`
}
