package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// ErrInterrupted is reported for an utterance that was stopped by Cancel
// rather than failing on its own.
var ErrInterrupted = errors.New("utterance interrupted")

// Utterance is a request to speak one span of text. The hooks are optional;
// nil hooks are simply not called.
type Utterance struct {
	Text     string
	Language string
	Rate     float64
	OnStart  func()
	OnEnd    func()
	OnError  func(error)
}

// Engine drives actual audio playback, one utterance at a time.
//
// Speak must return promptly and report through the utterance hooks from a
// separate goroutine; hooks are never invoked synchronously from within
// Speak. Cancel stops the active utterance, which then reports
// ErrInterrupted through its OnError hook.
type Engine interface {
	Speak(u Utterance)
	Cancel()
}

// SynthEngine adapts a Synthesizer plus a PCM sink into an Engine. The sink
// is typically an audio player's stdin.
type SynthEngine struct {
	synth  Synthesizer
	sink   io.Writer
	voice  string
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewSynthEngine(synth Synthesizer, sink io.Writer, voice string, logger *slog.Logger) *SynthEngine {
	return &SynthEngine{
		synth:  synth,
		sink:   sink,
		voice:  voice,
		logger: logger.With(slog.String("component", "synth-engine")),
	}
}

func (e *SynthEngine) Speak(u Utterance) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()

		if u.OnStart != nil {
			u.OnStart()
		}

		chunks, errs := e.synth.Synthesize(ctx, SynthRequest{
			Text:     u.Text,
			Voice:    e.voice,
			Language: u.Language,
			Rate:     u.Rate,
		})
		// Drain until both channels are closed; the synthesizer makes no
		// promise about which closes first.
		for chunks != nil || errs != nil {
			select {
			case chunk, ok := <-chunks:
				if !ok {
					chunks = nil
					break
				}
				if _, err := e.sink.Write(chunk.PCM); err != nil {
					e.finish(u, err)
					return
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					break
				}
				if err != nil {
					if ctx.Err() != nil {
						e.finish(u, ErrInterrupted)
					} else {
						e.finish(u, err)
					}
					return
				}
			case <-ctx.Done():
				e.finish(u, ErrInterrupted)
				return
			}
		}
		e.finish(u, nil)
	}()
}

func (e *SynthEngine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *SynthEngine) finish(u Utterance, err error) {
	if err == nil {
		if u.OnEnd != nil {
			u.OnEnd()
		}
		return
	}
	if u.OnError != nil {
		u.OnError(err)
	}
}
