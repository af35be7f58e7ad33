package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newClient(serverURL string) *Client {
	return New(config.ClientConfig{ServerURL: serverURL, RequestTimeout: 5000}, newLogger())
}

func TestChatStreamYieldsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var req protocol.ChatStreamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Message != "hello" {
			t.Errorf("unexpected message %q", req.Message)
		}
		if len(req.History) != 1 || req.History[0].Role != protocol.RoleModel {
			t.Errorf("unexpected history %+v", req.History)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"text":"Hi "}` + "\n" + `{"text":"there.","done":true}` + "\n"))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	stream, err := c.ChatStream(context.Background(), "session-1",
		[]protocol.ChatTurn{{Role: protocol.RoleModel, Text: "yes?"}}, "hello")
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		sb.WriteString(chunk.Text)
	}
	if sb.String() != "Hi there." {
		t.Fatalf("unexpected reply %q", sb.String())
	}
}

func TestChatStreamNon2xxIsHardFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "message must not be empty", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	_, err := c.ChatStream(context.Background(), "", nil, "")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "message must not be empty") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestChatStreamSkipsMalformedLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"text":"a"}` + "\n" + "garbage\n" + `{"text":"b","done":true}` + "\n"))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	stream, err := c.ChatStream(context.Background(), "", nil, "hi")
	if err != nil {
		t.Fatalf("chat stream: %v", err)
	}
	defer stream.Close()

	var texts []string
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		texts = append(texts, chunk.Text)
	}
	if len(texts) != 2 || texts[0] != "a" || texts[1] != "b" {
		t.Fatalf("expected malformed line skipped, got %v", texts)
	}
}
