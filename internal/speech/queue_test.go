package speech

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeEngine records dispatched utterances and lets the test fire their
// completion hooks itself.
type fakeEngine struct {
	mu         sync.Mutex
	dispatched []Utterance
	cancels    int
}

func (f *fakeEngine) Speak(u Utterance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, u)
}

func (f *fakeEngine) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatched)
}

func (f *fakeEngine) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.dispatched))
	for i, u := range f.dispatched {
		out[i] = u.Text
	}
	return out
}

func (f *fakeEngine) last() Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dispatched[len(f.dispatched)-1]
}

func TestQueueFIFO(t *testing.T) {
	engine := &fakeEngine{}
	q := NewQueue(engine, newLogger())

	q.Enqueue(Utterance{Text: "A"})
	q.Enqueue(Utterance{Text: "B"})
	q.Enqueue(Utterance{Text: "C"})

	if engine.count() != 1 {
		t.Fatalf("expected only the head dispatched, got %d", engine.count())
	}
	if q.State() != StatePlaying {
		t.Fatalf("expected playing state, got %v", q.State())
	}
	if q.PendingLen() != 2 {
		t.Fatalf("expected 2 pending, got %d", q.PendingLen())
	}

	engine.last().OnEnd()
	if engine.count() != 2 {
		t.Fatalf("expected B dispatched after A ended, got %d", engine.count())
	}
	engine.last().OnEnd()
	engine.last().OnEnd()

	got := engine.texts()
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("playback order %v, want %v", got, want)
		}
	}
	if q.State() != StateIdle {
		t.Fatalf("expected idle after drain, got %v", q.State())
	}
}

func TestQueueBlankTextIsNoOp(t *testing.T) {
	engine := &fakeEngine{}
	q := NewQueue(engine, newLogger())

	q.Enqueue(Utterance{Text: ""})
	q.Enqueue(Utterance{Text: "   \n\t"})

	if engine.count() != 0 {
		t.Fatalf("expected nothing dispatched, got %d", engine.count())
	}
	if q.State() != StateIdle {
		t.Fatalf("expected idle, got %v", q.State())
	}
}

func TestQueueErrorAdvances(t *testing.T) {
	engine := &fakeEngine{}
	q := NewQueue(engine, newLogger())

	var gotErr error
	q.Enqueue(Utterance{Text: "A", OnError: func(err error) { gotErr = err }})
	q.Enqueue(Utterance{Text: "B"})

	boom := errors.New("synthesis failed")
	engine.last().OnError(boom)

	if !errors.Is(gotErr, boom) {
		t.Fatalf("expected caller's OnError invoked with %v, got %v", boom, gotErr)
	}
	if engine.count() != 2 || engine.last().Text != "B" {
		t.Fatalf("expected B dispatched after A failed, got %v", engine.texts())
	}
}

func TestQueueCancelAllSuppressesError(t *testing.T) {
	engine := &fakeEngine{}
	q := NewQueue(engine, newLogger())

	var surfaced bool
	q.Enqueue(Utterance{Text: "A", OnError: func(error) { surfaced = true }})
	q.Enqueue(Utterance{Text: "B"})
	q.Enqueue(Utterance{Text: "C"})

	q.CancelAll()

	if q.PendingLen() != 0 {
		t.Fatalf("expected empty queue after cancel, got %d pending", q.PendingLen())
	}
	if engine.cancels != 1 {
		t.Fatalf("expected one engine cancel, got %d", engine.cancels)
	}
	if q.State() != StateCancelling {
		t.Fatalf("expected cancelling until the engine reports back, got %v", q.State())
	}

	// The engine's stop completes asynchronously and reports an interruption.
	engine.last().OnError(ErrInterrupted)

	if surfaced {
		t.Fatal("error for the cancelled utterance must not surface")
	}
	if q.State() != StateIdle {
		t.Fatalf("expected idle after suppressed callback, got %v", q.State())
	}
	if engine.count() != 1 {
		t.Fatalf("expected no further dispatch, got %v", engine.texts())
	}
}

func TestQueueCancelAllWhileIdle(t *testing.T) {
	engine := &fakeEngine{}
	q := NewQueue(engine, newLogger())

	q.CancelAll()

	if engine.cancels != 0 {
		t.Fatalf("expected no engine cancel with nothing active, got %d", engine.cancels)
	}
	if q.State() != StateIdle {
		t.Fatalf("expected idle, got %v", q.State())
	}
}

func TestQueueEnqueueAfterCancelBeforeCallback(t *testing.T) {
	engine := &fakeEngine{}
	q := NewQueue(engine, newLogger())

	q.Enqueue(Utterance{Text: "A"})
	interrupted := engine.last()
	q.CancelAll()

	// New work arrives before the cancelled utterance's late callback.
	q.Enqueue(Utterance{Text: "D"})
	if engine.count() != 2 || engine.last().Text != "D" {
		t.Fatalf("expected D dispatched immediately, got %v", engine.texts())
	}
	if q.State() != StatePlaying {
		t.Fatalf("expected playing, got %v", q.State())
	}

	interrupted.OnError(ErrInterrupted)

	// The late callback must neither advance nor disturb the new playback.
	if q.State() != StatePlaying {
		t.Fatalf("expected still playing after suppressed callback, got %v", q.State())
	}
	if engine.count() != 2 {
		t.Fatalf("unexpected extra dispatch %v", engine.texts())
	}
}

func TestQueueNoSynchronousDispatchReentry(t *testing.T) {
	// Enqueue from inside an OnEnd hook must not deadlock.
	engine := &fakeEngine{}
	q := NewQueue(engine, newLogger())

	done := make(chan struct{})
	q.Enqueue(Utterance{Text: "A", OnEnd: func() {
		q.Enqueue(Utterance{Text: "B"})
		close(done)
	}})

	go engine.last().OnEnd()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue from OnEnd hook deadlocked")
	}
}
