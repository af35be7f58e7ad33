package ndjson

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type record struct {
	T string `json:"t"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fragmentReader yields its fragments one per Read call, regardless of the
// caller's buffer size, to simulate arbitrary network chunking.
type fragmentReader struct {
	fragments [][]byte
	err       error
}

func (f *fragmentReader) Read(p []byte) (int, error) {
	if len(f.fragments) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		return 0, io.EOF
	}
	frag := f.fragments[0]
	f.fragments = f.fragments[1:]
	n := copy(p, frag)
	if n < len(frag) {
		f.fragments = append([][]byte{frag[n:]}, f.fragments...)
	}
	return n, nil
}

func decodeAll(t *testing.T, d *Decoder) ([]record, error) {
	t.Helper()
	var out []record
	for {
		var rec record
		err := d.Decode(&rec)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func TestEncodeWireFormat(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(record{T: "a"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Encode(record{T: "b"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := "{\"t\":\"a\"}\n{\"t\":\"b\"}\n"
	if buf.String() != want {
		t.Fatalf("unexpected wire bytes %q, want %q", buf.String(), want)
	}
}

func TestEncodeUnserializable(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no partial line flushed, got %q", buf.String())
	}
}

func TestDecodeRoundTripOrder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	values := []string{"one", "two", "three", "four"}
	for _, v := range values {
		if err := enc.Encode(record{T: v}); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	dec := NewDecoder(&buf, discardLogger())
	got, err := decodeAll(t, dec)
	if err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}
	if len(got) != len(values) {
		t.Fatalf("expected %d records, got %d", len(values), len(got))
	}
	for i, v := range values {
		if got[i].T != v {
			t.Fatalf("record %d: expected %q, got %q", i, v, got[i].T)
		}
	}
}

func TestDecodeFragmentationIndependence(t *testing.T) {
	encoded := []byte("{\"t\":\"a\"}\n{\"t\":\"b\"}\n{\"t\":\"c\"}\n")
	// Split at every possible byte boundary pair.
	for i := 0; i <= len(encoded); i++ {
		for j := i; j <= len(encoded); j++ {
			r := &fragmentReader{fragments: [][]byte{encoded[:i], encoded[i:j], encoded[j:]}}
			dec := NewDecoder(r, discardLogger())
			got, err := decodeAll(t, dec)
			if err != io.EOF {
				t.Fatalf("split %d/%d: expected EOF, got %v", i, j, err)
			}
			if len(got) != 3 || got[0].T != "a" || got[1].T != "b" || got[2].T != "c" {
				t.Fatalf("split %d/%d: unexpected records %+v", i, j, got)
			}
		}
	}
}

func TestDecodeMidRecordSplit(t *testing.T) {
	// The worked example: a record split across the fragment boundary.
	r := &fragmentReader{fragments: [][]byte{
		[]byte("{\"t\":\"a\"}\n{\"t\":\"b"),
		[]byte("\"}\n"),
	}}
	dec := NewDecoder(r, discardLogger())
	got, err := decodeAll(t, dec)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(got) != 2 || got[0].T != "a" || got[1].T != "b" {
		t.Fatalf("unexpected records %+v", got)
	}
}

func TestDecodeSkipsMalformedLine(t *testing.T) {
	r := bytes.NewReader([]byte("{\"t\":\"a\"}\nnot json at all\n{\"t\":\"b\"}\n"))
	dec := NewDecoder(r, discardLogger())
	got, err := decodeAll(t, dec)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(got) != 2 || got[0].T != "a" || got[1].T != "b" {
		t.Fatalf("expected malformed line skipped, got %+v", got)
	}
}

func TestDecodeTrailingWithoutNewline(t *testing.T) {
	r := bytes.NewReader([]byte("{\"t\":\"a\"}\n{\"t\":\"b\"}"))
	dec := NewDecoder(r, discardLogger())
	got, err := decodeAll(t, dec)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(got) != 2 || got[1].T != "b" {
		t.Fatalf("expected trailing record decoded, got %+v", got)
	}
}

func TestDecodeIgnoresBlankLines(t *testing.T) {
	r := bytes.NewReader([]byte("\n  \n{\"t\":\"a\"}\n\n{\"t\":\"b\"}\n   "))
	dec := NewDecoder(r, discardLogger())
	got, err := decodeAll(t, dec)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %+v", got)
	}
}

func TestDecodeBrokenStream(t *testing.T) {
	broken := errors.New("connection reset")
	r := &fragmentReader{
		fragments: [][]byte{[]byte("{\"t\":\"a\"}\n{\"t\":\"b\"}\n{\"t\":\"par")},
		err:       broken,
	}
	dec := NewDecoder(r, discardLogger())
	got, err := decodeAll(t, dec)
	if !errors.Is(err, broken) {
		t.Fatalf("expected broken-stream error, got %v", err)
	}
	// Complete lines before the break are still yielded; the partial tail
	// must not be parsed.
	if len(got) != 2 || got[0].T != "a" || got[1].T != "b" {
		t.Fatalf("unexpected records before break %+v", got)
	}
}

func TestDecodeUnparseableTrailingFragment(t *testing.T) {
	r := bytes.NewReader([]byte("{\"t\":\"a\"}\n{\"t\":\"trunc"))
	dec := NewDecoder(r, discardLogger())
	got, err := decodeAll(t, dec)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if len(got) != 1 || got[0].T != "a" {
		t.Fatalf("expected truncated tail skipped, got %+v", got)
	}
}
