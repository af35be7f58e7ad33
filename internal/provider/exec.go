package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/voxbridge/voxbridge/internal/ndjson"
)

// execStreamer shells out to a local command. The command receives one JSON
// request on stdin and streams newline-delimited {"text": ..., "done": ...}
// records on stdout.
type execStreamer struct {
	cmd []string
	mu  sync.Mutex
}

type execChatRequest struct {
	System      string    `json:"system,omitempty"`
	History     []Message `json:"history,omitempty"`
	Message     string    `json:"message"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type execChatChunk struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

func NewExecStreamer(command string) (Streamer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse provider command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("provider command is empty")
	}
	return &execStreamer{cmd: args}, nil
}

func (g *execStreamer) StreamChat(ctx context.Context, req Request, consumer func(Chunk) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	input, err := json.Marshal(execChatRequest{
		System:      req.System,
		History:     req.History,
		Message:     req.Message,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return err
	}

	base := g.cmd[0]
	args := append([]string{}, g.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start provider command: %w", err)
	}

	if _, err := stdin.Write(input); err != nil {
		_ = cmd.Wait()
		return err
	}
	stdin.Close()

	dec := ndjson.NewDecoder(stdout, nil)
	start := time.Now()
	for {
		var raw execChatChunk
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			_ = cmd.Wait()
			return fmt.Errorf("read provider stream: %w", err)
		}
		if err := consumer(Chunk{
			Text:    raw.Text,
			Done:    raw.Done,
			Latency: time.Since(start),
			TraceID: req.TraceID,
		}); err != nil {
			_ = cmd.Wait()
			return err
		}
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("provider command failed: %w", err)
	}
	return nil
}
