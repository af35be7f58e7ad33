package speech

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// QueueState tracks what the playback queue is doing.
type QueueState int

const (
	StateIdle       QueueState = iota // nothing active, nothing pending
	StatePlaying                      // exactly one utterance handed to the engine
	StateCancelling                   // stop requested, awaiting the interrupted utterance's callback
)

func (s QueueState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// Queue serializes utterance playback: the engine is handed at most one
// utterance at a time and pending utterances play in insertion order. All
// state transitions happen under one lock; engine callbacks re-enter through
// the playback wrappers installed at dispatch time.
type Queue struct {
	mu      sync.Mutex
	engine  Engine
	logger  *slog.Logger
	pending []Utterance
	state   QueueState
	active  *playback
}

// playback tracks one dispatched utterance. The cancelled flag is the
// suppression marker: a callback arriving for a cancelled playback is
// expected fallout of CancelAll, not a failure.
type playback struct {
	cancelled bool
}

func NewQueue(engine Engine, logger *slog.Logger) *Queue {
	return &Queue{
		engine: engine,
		logger: logger.With(slog.String("component", "utterance-queue")),
	}
}

// State reports the current queue state.
func (q *Queue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// PendingLen reports how many utterances are waiting behind the active one.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Enqueue appends an utterance to the queue. If nothing is playing the head
// of the queue is dispatched immediately; an active utterance is never
// preempted. Blank text is a no-op.
func (q *Queue) Enqueue(u Utterance) {
	if strings.TrimSpace(u.Text) == "" {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, u)
	if q.state == StatePlaying {
		q.mu.Unlock()
		return
	}
	q.dispatchLocked()
}

// CancelAll discards every pending utterance and asks the engine to stop the
// active one. The pending queue is empty by the time this returns; the
// engine's stop may complete asynchronously and its late error callback for
// the interrupted utterance is suppressed.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	q.pending = nil
	active := q.active
	if active != nil {
		active.cancelled = true
		q.state = StateCancelling
	} else {
		q.state = StateIdle
	}
	q.mu.Unlock()

	if active != nil {
		q.engine.Cancel()
	}
}

// dispatchLocked pops the head of the queue and hands it to the engine. The
// lock is released before Speak so engine callbacks can re-enter.
func (q *Queue) dispatchLocked() {
	if len(q.pending) == 0 {
		q.state = StateIdle
		q.active = nil
		q.mu.Unlock()
		return
	}
	u := q.pending[0]
	q.pending = q.pending[1:]
	p := &playback{}
	q.active = p
	q.state = StatePlaying
	q.mu.Unlock()

	q.engine.Speak(q.wrap(u, p))
}

// wrap installs the queue's own completion handling around the caller's
// hooks for one dispatched utterance.
func (q *Queue) wrap(u Utterance, p *playback) Utterance {
	wrapped := u
	wrapped.OnEnd = func() {
		if q.consumeCancel(p) {
			return
		}
		if u.OnEnd != nil {
			u.OnEnd()
		}
		q.advance(p)
	}
	wrapped.OnError = func(err error) {
		if q.consumeCancel(p) {
			// Expected interruption from CancelAll; keep it out of the logs.
			return
		}
		if !errors.Is(err, ErrInterrupted) {
			q.logger.Warn("utterance playback failed", slog.String("error", err.Error()))
		}
		if u.OnError != nil {
			u.OnError(err)
		}
		q.advance(p)
	}
	return wrapped
}

// consumeCancel reports whether the callback belongs to a cancelled playback
// and, if so, consumes the suppression marker.
func (q *Queue) consumeCancel(p *playback) bool {
	q.mu.Lock()
	if !p.cancelled {
		q.mu.Unlock()
		return false
	}
	if q.active == p {
		q.active = nil
	}
	if q.state == StateCancelling {
		q.state = StateIdle
	}
	q.mu.Unlock()
	return true
}

// advance moves on to the next pending utterance after the active one
// finished, one way or the other.
func (q *Queue) advance(p *playback) {
	q.mu.Lock()
	if q.active != p {
		// A newer dispatch already took over.
		q.mu.Unlock()
		return
	}
	q.dispatchLocked()
}
