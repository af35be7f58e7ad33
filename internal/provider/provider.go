// Package provider abstracts the upstream generative-AI backends the gateway
// proxies to. All backends share one push-based streaming contract: the
// consumer callback receives chunks in generation order and a mid-stream
// failure is returned from StreamChat so the caller can terminate its own
// output stream in an error state.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/voxbridge/voxbridge/internal/config"
)

// Conversation roles as they appear on the wire.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of conversation history.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request describes a chat completion over an existing history.
type Request struct {
	History     []Message
	Message     string
	System      string
	Model       string
	MaxTokens   int
	Temperature float64
	TraceID     string
}

// Chunk represents one increment of streamed model output.
type Chunk struct {
	Text             string
	Done             bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
	TraceID          string
}

// Streamer defines a pluggable chat backend.
type Streamer interface {
	StreamChat(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// FromConfig builds the configured backend.
func FromConfig(cfg config.ProviderConfig) (Streamer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockStreamer(), nil
	case "ollama":
		return NewOllamaStreamer(cfg.Endpoint, cfg.Model), nil
	case "openai":
		return NewOpenAIStreamer(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	case "exec":
		return NewExecStreamer(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown provider mode %q", cfg.Mode)
	}
}

// OptionsFromConfig seeds a request with configured defaults.
func OptionsFromConfig(cfg config.ProviderConfig) Request {
	return Request{
		System:      cfg.SystemPrompt,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}
