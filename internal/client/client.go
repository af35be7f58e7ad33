// Package client consumes the gateway's chat-stream endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/ndjson"
	"github.com/voxbridge/voxbridge/internal/protocol"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(cfg config.ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.ServerURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Millisecond,
		},
		logger: logger.With(slog.String("component", "chat-client")),
	}
}

// ChatStream posts one message with its history and returns the reply as a
// pull-based stream. A non-2xx status is a hard failure carrying the
// response body; there is no retry.
func (c *Client) ChatStream(ctx context.Context, sessionID string, history []protocol.ChatTurn, message string) (*Stream, error) {
	body, err := json.Marshal(protocol.ChatStreamRequest{History: history, Message: message})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("chat request failed with status %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	return &Stream{
		body: resp.Body,
		dec:  ndjson.NewDecoder(resp.Body, c.logger),
	}, nil
}

// Stream yields reply chunks in arrival order. Next returns io.EOF when the
// reply ended cleanly; any other error means the stream broke mid-flight.
type Stream struct {
	body io.ReadCloser
	dec  *ndjson.Decoder
}

func (s *Stream) Next() (protocol.StreamChunk, error) {
	var chunk protocol.StreamChunk
	if err := s.dec.Decode(&chunk); err != nil {
		return protocol.StreamChunk{}, err
	}
	return chunk, nil
}

func (s *Stream) Close() error {
	return s.body.Close()
}
