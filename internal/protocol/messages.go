// Package protocol defines the wire types shared by the gateway, the
// streaming client and the bus relay.
package protocol

import "time"

// Conversation roles as they appear in request history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatTurn is one turn of prior conversation supplied by the client.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatStreamRequest is the body of POST /v1/chat/stream.
type ChatStreamRequest struct {
	History []ChatTurn `json:"history"`
	Message string     `json:"message"`
}

// StreamChunk is one line of the newline-delimited response body.
type StreamChunk struct {
	Text             string `json:"text"`
	Done             bool   `json:"done"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// ChatMessage is a user message relayed on the bus.
type ChatMessage struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplyChunk is an increment of assistant output relayed on the bus.
type ReplyChunk struct {
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Done      bool      `json:"done"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectChatMessage  = "chat.message"
	SubjectReplyPartial = "chat.reply.partial"
	SubjectReplyFinal   = "chat.reply.final"
)
