package ndjson

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
)

// Decoder reads newline-delimited JSON records from a byte stream whose
// fragmentation is arbitrary: a single read may carry zero, one or many
// records, and a record may be split across reads. Records are yielded in
// arrival order.
//
// A line that fails to parse is skipped with a warning rather than aborting
// the stream; one malformed record must not take down the whole response.
// A Decoder is bound to one stream and is not reusable.
type Decoder struct {
	r       io.Reader
	buf     []byte // bytes received since the last complete line boundary
	scratch []byte
	readErr error
	drained bool
	logger  *slog.Logger
}

func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		r:       r,
		scratch: make([]byte, 4096),
		logger:  logger,
	}
}

// Decode parses the next record into v. It returns io.EOF once the stream
// ended cleanly and every record has been yielded. Any other error means the
// stream broke mid-flight; records fully received before the break are still
// yielded first.
func (d *Decoder) Decode(v any) error {
	for {
		if i := bytes.IndexByte(d.buf, '\n'); i >= 0 {
			line := bytes.TrimSpace(d.buf[:i])
			d.buf = d.buf[i+1:]
			if len(line) == 0 {
				continue
			}
			if err := json.Unmarshal(line, v); err != nil {
				d.logger.Warn("skipping malformed record",
					slog.String("error", err.Error()),
					slog.Int("length", len(line)))
				continue
			}
			return nil
		}

		if d.readErr != nil {
			return d.finish(v)
		}

		n, err := d.r.Read(d.scratch)
		if n > 0 {
			d.buf = append(d.buf, d.scratch[:n]...)
		}
		if err != nil {
			d.readErr = err
		}
	}
}

// finish handles the tail of the stream. On a clean end a trailing line
// without a terminator is still one record; on a broken stream the partial
// tail is discarded because we cannot tell how much of it arrived.
func (d *Decoder) finish(v any) error {
	if d.readErr == io.EOF && !d.drained {
		d.drained = true
		line := bytes.TrimSpace(d.buf)
		d.buf = nil
		if len(line) > 0 {
			if err := json.Unmarshal(line, v); err == nil {
				return nil
			}
			// Could indicate a truncated upstream response; warn but keep
			// the clean-end semantics.
			d.logger.Warn("discarding unparseable trailing fragment",
				slog.Int("length", len(line)))
		}
	}
	return d.readErr
}
