package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseRejectsMalformed(t *testing.T) {
	for _, text := range []string{
		"",
		"{",
		`{"_meta": }`,
		`{"a":1} {"b":2}`,
		`{"a":1}]`,
	} {
		v, err := Parse([]byte(text))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) err = %v, want *ParseError", text, err)
		}
		if v != nil {
			t.Errorf("Parse(%q) returned a partial value", text)
		}
		if err != nil && !strings.HasPrefix(err.Error(), "file is not valid JSON") {
			t.Errorf("Parse(%q) message = %q", text, err)
		}
	}
}

func TestParseAcceptsBOMAndWhitespace(t *testing.T) {
	v, err := Parse([]byte("\xEF\xBB\xBF {\"_meta\": {}}\n\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := v.(map[string]any); !ok {
		t.Errorf("value = %T, want object", v)
	}
}

func TestSerializeLayout(t *testing.T) {
	b, err := Serialize(Build(sampleLive(), DefaultOptions(), Stamp{Now: fixedNow}))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	text := string(b)
	if !strings.HasPrefix(text, "{\n  \"_meta\": {\n    \"version\"") {
		t.Errorf("unexpected head: %q", text[:40])
	}
	if !strings.HasSuffix(text, "}\n") {
		t.Error("missing trailing newline")
	}
	if strings.Index(text, `"categories"`) > strings.Index(text, `"inquiries"`) {
		t.Error("domains out of order")
	}
}

func TestSerializeStable(t *testing.T) {
	doc := Build(sampleLive(), AllOptions(), Stamp{Now: fixedNow})
	a, _ := Serialize(doc)
	b, _ := Serialize(doc)
	if string(a) != string(b) {
		t.Error("serialization not deterministic")
	}
}

func TestWriteFileDefaultName(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteFile(Build(sampleLive(), DefaultOptions(), Stamp{Now: fixedNow}), dir, "")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "kernel-cms-backup-") {
		t.Errorf("path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}

	v, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r := Validate(v); !r.Valid {
		t.Errorf("written file invalid: %v", r.Errors)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	var pe *ParseError
	if err == nil || errors.As(err, &pe) {
		t.Errorf("err = %v, want read error", err)
	}
}

func TestDefaultFilename(t *testing.T) {
	got := DefaultFilename(time.Date(2025, 1, 9, 23, 0, 0, 0, time.UTC))
	if got != "kernel-cms-backup-2025-01-09.json" {
		t.Errorf("filename = %q", got)
	}
}
