package speech

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// blockingSynth never produces audio until the context is cancelled.
type blockingSynth struct{}

func (b *blockingSynth) Synthesize(ctx context.Context, _ SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		<-ctx.Done()
		errs <- ctx.Err()
	}()
	return chunks, errs
}

func TestSynthEngineSpeaksToSink(t *testing.T) {
	var sink bytes.Buffer
	engine := NewSynthEngine(NewMockSynthesizer(22050, 1), &sink, "amy", newLogger())

	started := make(chan struct{})
	ended := make(chan struct{})
	engine.Speak(Utterance{
		Text:    "hello world",
		OnStart: func() { close(started) },
		OnEnd:   func() { close(ended) },
		OnError: func(err error) { t.Errorf("unexpected error: %v", err) },
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("utterance never started")
	}
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("utterance never ended")
	}
	if sink.Len() == 0 {
		t.Fatal("expected PCM written to the sink")
	}
}

// eagerCloseSynth delivers its whole output up front and closes the error
// channel before the chunk channel, the order a deferred-close implementation
// produces.
type eagerCloseSynth struct{}

func (eagerCloseSynth) Synthesize(_ context.Context, _ SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error)
	chunks <- SynthChunk{PCM: []byte{1, 2, 3, 4}, Final: true}
	close(errs)
	close(chunks)
	return chunks, errs
}

func TestSynthEngineCompletesWhenErrorChannelClosesFirst(t *testing.T) {
	var sink bytes.Buffer
	engine := NewSynthEngine(eagerCloseSynth{}, &sink, "", newLogger())

	ended := make(chan struct{})
	engine.Speak(Utterance{
		Text:    "short reply",
		OnEnd:   func() { close(ended) },
		OnError: func(err error) { t.Errorf("unexpected error: %v", err) },
	})

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("utterance never ended after error channel closed first")
	}
	if sink.Len() != 4 {
		t.Fatalf("expected 4 PCM bytes in the sink, got %d", sink.Len())
	}
}

func TestSynthEngineCancelReportsInterruption(t *testing.T) {
	var sink bytes.Buffer
	engine := NewSynthEngine(&blockingSynth{}, &sink, "", newLogger())

	errCh := make(chan error, 1)
	engine.Speak(Utterance{
		Text:    "never finishes",
		OnEnd:   func() { t.Error("unexpected clean end") },
		OnError: func(err error) { errCh <- err },
	})

	engine.Cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("expected ErrInterrupted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel never reported")
	}
}
