package speech

import (
	"context"
	"fmt"

	"github.com/voxbridge/voxbridge/internal/config"
)

// SynthRequest contains parameters to synthesize one span of text.
type SynthRequest struct {
	Text     string
	Voice    string
	Language string
	Rate     float64
}

// SynthChunk contains PCM data.
type SynthChunk struct {
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}

// SynthesizerFromConfig builds the configured synthesizer backend.
func SynthesizerFromConfig(cfg config.SynthesizerConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockSynthesizer(cfg.SampleRate, cfg.Channels), nil
	case "exec":
		return NewExecSynthesizer(cfg)
	default:
		return nil, fmt.Errorf("unknown synthesizer mode %q", cfg.Mode)
	}
}
