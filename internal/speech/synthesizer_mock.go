package speech

import (
	"context"
	"time"
)

type mockSynthesizer struct {
	sampleRate int
	channels   int
}

func NewMockSynthesizer(sampleRate, channels int) Synthesizer {
	return &mockSynthesizer{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(10 * time.Millisecond):
		}
		chunks <- SynthChunk{
			Sequence:   0,
			SampleRate: m.sampleRate,
			Channels:   m.channels,
			PCM:        make([]byte, 2*len(req.Text)),
			Final:      true,
		}
	}()
	return chunks, errs
}
