package snapshot

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustParse(t *testing.T, text string) any {
	t.Helper()
	v, err := Parse([]byte(text))
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return v
}

func hasMessage(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestValidateRejectsNonObjects(t *testing.T) {
	for _, candidate := range []any{nil, 42, "text", []any{1, 2}, []byte("not json"), []byte("[]")} {
		r := Validate(candidate)
		if r.Valid {
			t.Errorf("Validate(%v) valid, want invalid", candidate)
		}
		if len(r.Errors) != 1 || !strings.Contains(r.Errors[0], "not a valid document") {
			t.Errorf("Validate(%v) errors = %v", candidate, r.Errors)
		}
		if r.Summary != nil {
			t.Errorf("Validate(%v) computed a summary", candidate)
		}
	}
}

func TestValidateMissingMetadata(t *testing.T) {
	r := Validate(mustParse(t, `{}`))
	if r.Valid {
		t.Fatal("empty object valid, want invalid")
	}
	if !hasMessage(r.Errors, "missing metadata") {
		t.Errorf("errors = %v, want missing metadata", r.Errors)
	}
	if r.Summary == nil {
		t.Fatal("summary missing")
	}
}

func TestValidateNullMetadataIsMissing(t *testing.T) {
	r := Validate(mustParse(t, `{"_meta": null}`))
	if !hasMessage(r.Errors, "missing metadata") {
		t.Errorf("errors = %v, want missing metadata", r.Errors)
	}
}

func TestValidateMissingSchemaVersionWarns(t *testing.T) {
	r := Validate(mustParse(t, `{"_meta":{"version":"1.0.0","exportedAt":"2023-01-01T00:00:00Z","appName":"X"}}`))
	if !r.Valid {
		t.Fatalf("errors = %v, want valid", r.Errors)
	}
	if !hasMessage(r.Warnings, "treated as v1") {
		t.Errorf("warnings = %v, want schema version warning", r.Warnings)
	}
}

func TestValidateNonNumericSchemaVersionWarns(t *testing.T) {
	r := Validate(mustParse(t, `{"_meta":{"schemaVersion":"two","appName":"X"}}`))
	if !r.Valid {
		t.Fatalf("errors = %v, want valid", r.Errors)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("warnings = %v, want one", r.Warnings)
	}
}

func TestValidateRejectsFutureVersion(t *testing.T) {
	r := Validate(map[string]any{
		"_meta": map[string]any{"schemaVersion": CurrentSchemaVersion + 1, "appName": "X"},
	})
	if r.Valid {
		t.Fatal("future schema valid, want invalid")
	}
	if !hasMessage(r.Errors, "newer than supported") {
		t.Errorf("errors = %v", r.Errors)
	}
}

func TestValidateSchemaVersionBounds(t *testing.T) {
	tests := []struct {
		version string
		valid   bool
		source  int
		message string
	}{
		{"2.5", false, 0, "v2.5 is newer than supported"},
		{"1e20", false, 0, "v1e+20 is newer than supported"},
		{"3", false, 0, "v3 is newer than supported"},
		{"-1", true, 1, ""},
		{"1.5", true, 1, ""},
		{"2", true, 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			text := `{"_meta":{"schemaVersion":` + tt.version + `,"appName":"X"}}`
			r := Validate(mustParse(t, text))
			if r.Valid != tt.valid {
				t.Fatalf("valid = %v, errors = %v", r.Valid, r.Errors)
			}
			if tt.message != "" && !hasMessage(r.Errors, tt.message) {
				t.Errorf("errors = %v, want %q", r.Errors, tt.message)
			}

			res := NewEngine(Config{}).ImportBackup(mustParse(t, text))
			if res.Success != tt.valid {
				t.Fatalf("import success = %v, error = %q", res.Success, res.Error)
			}
			if tt.valid && res.FromVersion != tt.source {
				t.Errorf("from = %d, want %d", res.FromVersion, tt.source)
			}
			if !tt.valid && !res.Rejected {
				t.Error("future snapshot not marked rejected")
			}
		})
	}
}

func TestVersionOfSaturates(t *testing.T) {
	tests := []struct {
		in   float64
		want SchemaVersion
	}{
		{-1, 0},
		{0, 0},
		{1.9, 1},
		{2, 2},
		{1e20, maxSchemaVersion},
	}
	for _, tt := range tests {
		if got := versionOf(tt.in); got != tt.want {
			t.Errorf("versionOf(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}

	var v SchemaVersion
	if err := json.Unmarshal([]byte("1e20"), &v); err != nil {
		t.Fatal(err)
	}
	if v.Effective() <= CurrentSchemaVersion {
		t.Errorf("1e20 decoded to %d, want a future version", v)
	}
}

func TestValidateIntegerRangeMatchesModel(t *testing.T) {
	tests := []string{
		`{"_meta":{"schemaVersion":2},"products":[{"id":1e20}]}`,
		`{"_meta":{"schemaVersion":2},"categories":[{"id":"a","order":-1e19}]}`,
		`{"_meta":{"schemaVersion":1},"posts":[{"id":9007199254740993}]}`,
		`{"_meta":{"schemaVersion":2},"themes":{"customThemes":[{"id":"t","createdAt":1e300}]}}`,
		`{"_meta":{"schemaVersion":2},"settings":{"chatbotSettings":{"maxTokens":1e20}}}`,
	}
	for _, text := range tests {
		r := Validate(mustParse(t, text))
		if r.Valid {
			t.Errorf("%s: valid, want out-of-range error", text)
			continue
		}
		res := NewEngine(Config{}).ImportBackup(mustParse(t, text))
		if res.Success || !res.Rejected {
			t.Errorf("%s: import = %+v, want rejection", text, res)
		}
	}

	ok := `{"_meta":{"schemaVersion":2},"products":[{"id":9007199254740991}]}`
	if r := Validate(mustParse(t, ok)); !r.Valid {
		t.Errorf("largest safe id invalid: %v", r.Errors)
	}
	if res := NewEngine(Config{}).ImportBackup(mustParse(t, ok)); !res.Success {
		t.Errorf("largest safe id import: %s", res.Error)
	}
}

func TestValidateFalsyMetadataIsMissing(t *testing.T) {
	for _, meta := range []string{`false`, `""`, `0`} {
		r := Validate(mustParse(t, `{"_meta":`+meta+`}`))
		if !hasMessage(r.Errors, "missing metadata") {
			t.Errorf("_meta %s: errors = %v, want missing metadata", meta, r.Errors)
		}
	}
	for _, meta := range []string{`true`, `"x"`, `[]`} {
		r := Validate(mustParse(t, `{"_meta":`+meta+`}`))
		if !hasMessage(r.Errors, "_meta must be an object") {
			t.Errorf("_meta %s: errors = %v, want not-an-object", meta, r.Errors)
		}
	}
}

func TestValidateShapeErrorNamesDomain(t *testing.T) {
	r := Validate(mustParse(t, `{"_meta":{"schemaVersion":2},"categories":"not-an-array","products":[]}`))
	if r.Valid {
		t.Fatal("valid, want invalid")
	}
	if len(r.Errors) != 1 || !strings.HasPrefix(r.Errors[0], "categories") {
		t.Errorf("errors = %v, want one naming categories", r.Errors)
	}
	if r.Summary.Categories != 0 {
		t.Errorf("summary.categories = %d, want 0", r.Summary.Categories)
	}
}

func TestValidateObjectDomains(t *testing.T) {
	r := Validate(mustParse(t, `{"_meta":{"schemaVersion":2},"settings":[1],"themes":"dark"}`))
	if !hasMessage(r.Errors, "settings must be an object") {
		t.Errorf("errors = %v, want settings error", r.Errors)
	}
	if !hasMessage(r.Errors, "themes must be an object") {
		t.Errorf("errors = %v, want themes error", r.Errors)
	}
	// Presence flags are existence checks, not shape checks.
	if !r.Summary.HasSettings || !r.Summary.HasThemes {
		t.Errorf("summary = %+v, want settings and themes flagged", r.Summary)
	}
}

func TestValidateRecordTypes(t *testing.T) {
	r := Validate(mustParse(t, `{"_meta":{"schemaVersion":2},"products":[{"id":1},{"id":"two"}]}`))
	if r.Valid {
		t.Fatal("valid, want invalid")
	}
	if !hasMessage(r.Errors, "products[1].id") {
		t.Errorf("errors = %v, want products[1].id", r.Errors)
	}
}

func TestValidateManifestFieldTypes(t *testing.T) {
	r := Validate(mustParse(t, `{"_meta":{"schemaVersion":2,"features":"all"}}`))
	if !hasMessage(r.Errors, "_meta.features") {
		t.Errorf("errors = %v, want _meta.features", r.Errors)
	}
}

func TestValidateSummary(t *testing.T) {
	r := Validate(mustParse(t, `{
		"_meta": {"schemaVersion": 2, "version": "2.0.0", "exportedAt": "2024-01-01T00:00:00.000Z", "appName": "Kernel CMS"},
		"categories": [{"id": "a"}, {"id": "b"}],
		"products": [{"id": 1}],
		"inquiries": [],
		"themes": {"activeThemeId": "x", "customThemes": [{"id": "x"}]},
		"analytics": {"events": [], "includeAnalytics": true}
	}`))
	if !r.Valid {
		t.Fatalf("errors = %v", r.Errors)
	}
	s := r.Summary
	if s.Categories != 2 || s.Products != 1 || s.Inquiries != 0 || s.CustomThemes != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.HasSettings {
		t.Error("hasSettings = true, want false")
	}
	if !s.HasThemes {
		t.Error("hasThemes = false, want true")
	}
	// An analytics block with no events does not count.
	if s.HasAnalytics {
		t.Error("hasAnalytics = true, want false")
	}
	if r.Meta == nil || r.Meta.AppName != "Kernel CMS" {
		t.Errorf("meta = %+v", r.Meta)
	}
}

func TestValidateTypedDocument(t *testing.T) {
	doc := Build(sampleLive(), AllOptions(), Stamp{Now: fixedNow})
	r := Validate(doc)
	if !r.Valid {
		t.Fatalf("errors = %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("warnings = %v", r.Warnings)
	}
	if r.Summary.AnalyticsEvents != 1 || !r.Summary.HasAnalytics {
		t.Errorf("summary = %+v", r.Summary)
	}
}
