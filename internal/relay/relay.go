// Package relay mirrors gateway conversations onto the bus so other services
// can observe them. The relay is write-only: it never feeds anything back
// into the request path, and a publish failure is logged rather than
// propagated so bus trouble cannot break a chat stream.
package relay

import (
	"log/slog"
	"time"

	"github.com/voxbridge/voxbridge/internal/bus"
	"github.com/voxbridge/voxbridge/internal/protocol"
)

type Relay struct {
	bus    *bus.Client
	logger *slog.Logger
}

// New returns a relay over the given bus client; a nil client yields a nil
// relay, and every method on a nil relay is a no-op.
func New(busClient *bus.Client, logger *slog.Logger) *Relay {
	if busClient == nil {
		return nil
	}
	return &Relay{
		bus:    busClient,
		logger: logger.With(slog.String("component", "relay")),
	}
}

// UserMessage mirrors an inbound chat message.
func (r *Relay) UserMessage(sessionID, text string) {
	if r == nil {
		return
	}
	msg := protocol.ChatMessage{
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := r.bus.PublishJSON(protocol.SubjectChatMessage, msg); err != nil {
		r.logger.Warn("failed to relay chat message", slog.String("error", err.Error()))
	}
}

// ReplyChunk mirrors one streamed increment of assistant output.
func (r *Relay) ReplyChunk(sessionID, traceID, text string, done bool) {
	if r == nil {
		return
	}
	msg := protocol.ReplyChunk{
		SessionID: sessionID,
		Text:      text,
		Done:      done,
		TraceID:   traceID,
		Timestamp: time.Now().UTC(),
	}
	subject := protocol.SubjectReplyPartial
	if done {
		subject = protocol.SubjectReplyFinal
	}
	if err := r.bus.PublishJSON(subject, msg); err != nil {
		r.logger.Warn("failed to relay reply chunk", slog.String("error", err.Error()))
	}
}
