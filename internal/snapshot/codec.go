package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ContentType is the MIME type of an exported snapshot.
const ContentType = "application/json"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseError reports snapshot text that is not valid JSON. Nothing is
// decoded when it is returned.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "file is not valid JSON: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Serialize renders doc as two-space indented JSON with a trailing newline.
// _meta comes first and domains follow in a fixed order; map keys inside
// domains are sorted.
func Serialize(doc *Document) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}
	return append(b, '\n'), nil
}

// Parse decodes snapshot text into a generic JSON value. A leading byte
// order mark is ignored. Malformed text and trailing data after the first
// value both fail with *ParseError.
func Parse(text []byte) (any, error) {
	text = bytes.TrimPrefix(text, utf8BOM)
	dec := json.NewDecoder(bytes.NewReader(text))

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty input")
		}
		return nil, &ParseError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: errors.New("unexpected data after the document")}
	}
	return v, nil
}

// ReadFrom reads all of r and parses it.
func ReadFrom(r io.Reader) (any, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(b)
}

// ReadFile reads and parses the snapshot at path.
func ReadFile(path string) (any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Parse(b)
}

// Write serializes doc to w.
func Write(w io.Writer, doc *Document) error {
	b, err := Serialize(doc)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// WriteFile serializes doc into dir. An empty filename selects
// DefaultFilename for the current day. The returned path is the file
// written.
func WriteFile(doc *Document, dir, filename string) (string, error) {
	if filename == "" {
		filename = DefaultFilename(time.Now())
	}
	b, err := Serialize(doc)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// DefaultFilename names an export taken at now, for example
// kernel-cms-backup-2024-05-01.json.
func DefaultFilename(now time.Time) string {
	return AppSlug + "-backup-" + now.UTC().Format(time.DateOnly) + ".json"
}
