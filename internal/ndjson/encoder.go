// Package ndjson implements the newline-delimited JSON framing used between
// the chat gateway and its streaming clients. Each line of the byte stream is
// one complete JSON record; lines are separated by a single '\n' and the
// stream may end with or without a trailing newline.
package ndjson

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes records to a byte stream one line at a time. Records are
// flushed as soon as they are written so a chunked HTTP response delivers
// each record without batching latency.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// Encode serializes v, appends the line terminator and writes the whole line
// in one call. A marshal failure writes nothing, so a consumer never sees an
// unterminated partial line.
func (e *Encoder) Encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line := append(data, '\n')
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
