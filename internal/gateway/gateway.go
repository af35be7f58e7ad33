// Package gateway exposes the chat-stream proxy endpoint: it forwards a chat
// request to the configured provider and streams the reply back as
// newline-delimited JSON over a chunked response body.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxbridge/voxbridge/internal/config"
	"github.com/voxbridge/voxbridge/internal/ndjson"
	"github.com/voxbridge/voxbridge/internal/protocol"
	"github.com/voxbridge/voxbridge/internal/provider"
	"github.com/voxbridge/voxbridge/internal/relay"
)

// errClientGone marks stream errors caused by the downstream consumer, not
// the provider; the response is already unsalvageable, so we only log.
var errClientGone = errors.New("client went away")

type Server struct {
	cfg      config.ProviderConfig
	streamer provider.Streamer
	relay    *relay.Relay
	logger   *slog.Logger

	requests metric.Int64Counter
	chunks   metric.Int64Counter
}

func New(cfg config.ProviderConfig, streamer provider.Streamer, rel *relay.Relay, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		streamer: streamer,
		relay:    rel,
		logger:   logger.With(slog.String("component", "gateway")),
	}
	meter := otel.Meter("github.com/voxbridge/voxbridge/gateway")
	if counter, err := meter.Int64Counter("vox.chat.requests",
		metric.WithDescription("Chat stream requests by status")); err == nil {
		s.requests = counter
	}
	if counter, err := meter.Int64Counter("vox.chat.chunks",
		metric.WithDescription("Streamed reply chunks")); err == nil {
		s.chunks = counter
	}
	return s
}

// Register mounts the gateway routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/chat/stream", s.handleChatStream)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.count(r.Context(), http.StatusMethodNotAllowed)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.count(r.Context(), http.StatusBadRequest)
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.count(r.Context(), http.StatusBadRequest)
		http.Error(w, "message must not be empty", http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	traceID := uuid.NewString()
	logger := s.logger.With(slog.String("session_id", sessionID))

	s.relay.UserMessage(sessionID, req.Message)

	provReq := provider.OptionsFromConfig(s.cfg)
	provReq.Message = req.Message
	provReq.TraceID = traceID
	provReq.History = make([]provider.Message, 0, len(req.History))
	for _, turn := range req.History {
		provReq.History = append(provReq.History, provider.Message{Role: turn.Role, Text: turn.Text})
	}

	// Headers are written lazily: a provider failure before the first chunk
	// still gets a proper 500.
	var enc *ndjson.Encoder
	streamErr := s.streamer.StreamChat(r.Context(), provReq, func(chunk provider.Chunk) error {
		if enc == nil {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			enc = ndjson.NewEncoder(w)
		}
		if err := enc.Encode(protocol.StreamChunk{
			Text:             chunk.Text,
			Done:             chunk.Done,
			PromptTokens:     chunk.PromptTokens,
			CompletionTokens: chunk.CompletionTokens,
		}); err != nil {
			return fmt.Errorf("%w: %w", errClientGone, err)
		}
		if s.chunks != nil {
			s.chunks.Add(r.Context(), 1)
		}
		s.relay.ReplyChunk(sessionID, traceID, chunk.Text, chunk.Done)
		return nil
	})

	if streamErr != nil {
		if errors.Is(streamErr, errClientGone) {
			logger.Info("chat stream consumer disconnected", slog.String("error", streamErr.Error()))
			return
		}
		if enc == nil {
			s.count(r.Context(), http.StatusInternalServerError)
			logger.Warn("chat stream failed before first chunk", slog.String("error", streamErr.Error()))
			http.Error(w, fmt.Sprintf("provider error: %v", streamErr), http.StatusInternalServerError)
			return
		}
		// Mid-stream failure: abort the connection so the consumer sees a
		// broken stream instead of a clean end.
		logger.Warn("chat stream failed mid-flight", slog.String("error", streamErr.Error()))
		panic(http.ErrAbortHandler)
	}

	s.count(r.Context(), http.StatusOK)
}

func (s *Server) count(ctx context.Context, status int) {
	if s.requests == nil {
		return
	}
	s.requests.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", status)))
}
