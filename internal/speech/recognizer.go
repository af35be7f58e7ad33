// Package speech holds the client-side speech capabilities: recognition,
// synthesis and the playback queue that serializes utterances. The platform
// engines sit behind small interfaces so the pipeline can run against
// deterministic fakes without audio hardware.
package speech

import (
	"context"
	"fmt"

	"github.com/voxbridge/voxbridge/internal/config"
)

// Transcript captures recognizer output.
type Transcript struct {
	Text       string
	Confidence float64
}

// Recognizer turns one captured audio segment into text. Single-shot: each
// call transcribes one utterance and returns a final transcript or an error.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate, channels int) (Transcript, error)
}

// RecognizerFromConfig builds the configured recognizer backend.
func RecognizerFromConfig(cfg config.RecognizerConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockRecognizer(), nil
	case "exec":
		return NewExecRecognizer(cfg)
	default:
		return nil, fmt.Errorf("unknown recognizer mode %q", cfg.Mode)
	}
}
