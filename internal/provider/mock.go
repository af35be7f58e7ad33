package provider

import (
	"context"
	"strings"
	"time"
)

type mockStreamer struct{}

func NewMockStreamer() Streamer { return &mockStreamer{} }

// StreamChat emits a canned reply word by word so downstream streaming paths
// see realistic multi-chunk output.
func (m *mockStreamer) StreamChat(ctx context.Context, req Request, consumer func(Chunk) error) error {
	reply := "[mock reply to " + strings.TrimSpace(req.Message) + "]"
	words := strings.Fields(reply)
	start := time.Now()
	for i, word := range words {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
		text := word
		if i < len(words)-1 {
			text += " "
		}
		if err := consumer(Chunk{
			Text:    text,
			Done:    i == len(words)-1,
			Latency: time.Since(start),
			TraceID: req.TraceID,
		}); err != nil {
			return err
		}
	}
	return nil
}
