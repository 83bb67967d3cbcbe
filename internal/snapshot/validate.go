package snapshot

import (
	"encoding/json"
	"fmt"
)

const (
	msgNotDocument     = "not a valid document: no backup data found"
	msgMissingMeta     = "missing metadata (_meta): likely not a genuine backup"
	msgMetaNotObject   = "_meta must be an object"
	msgVersionMissing  = "schema version missing: treated as v1"
	fmtVersionTooNew   = "backup schema version v%v is newer than supported version v%d"
	fmtMustBeArray     = "%s must be an array"
	fmtMustBeObject    = "%s must be an object"
	metaKey            = "_meta"
	schemaVersionKey   = "schemaVersion"
	customThemesKey    = "customThemes"
	analyticsEventsKey = "events"
)

// Validate inspects an untrusted candidate and reports whether it can be
// imported. The candidate may be a decoded JSON value, raw JSON bytes, or a
// typed snapshot. Validate never panics and never fails; every problem is a
// line in the report.
func Validate(candidate any) Report {
	root, ok := toObject(candidate)
	if !ok {
		return Report{Errors: []string{msgNotDocument}, Warnings: []string{}}
	}
	return validateRoot(root)
}

func validateRoot(root map[string]any) Report {
	r := Report{Errors: []string{}, Warnings: []string{}}

	meta, hasMeta := present(root, metaKey)
	if hasMeta && falsy(meta) {
		hasMeta = false
	}
	switch {
	case !hasMeta:
		r.Errors = append(r.Errors, msgMissingMeta)
	default:
		m, isObj := meta.(map[string]any)
		if !isObj {
			r.Errors = append(r.Errors, msgMetaNotObject)
			break
		}
		r.Meta = decodeManifest(m)
		n, isNum := m[schemaVersionKey].(float64)
		if !isNum {
			r.Warnings = append(r.Warnings, msgVersionMissing)
		} else if n > float64(CurrentSchemaVersion) {
			r.Errors = append(r.Errors, fmt.Sprintf(fmtVersionTooNew, n, CurrentSchemaVersion))
		}
		r.Errors = append(r.Errors, checkSchema(manifestSchema, metaKey, withoutVersion(m))...)
	}

	for _, d := range listDomains {
		v, ok := present(root, string(d))
		if !ok {
			continue
		}
		if _, isArr := v.([]any); !isArr {
			r.Errors = append(r.Errors, fmt.Sprintf(fmtMustBeArray, d))
			continue
		}
		r.Errors = append(r.Errors, checkSchema(string(d), string(d), v)...)
	}
	for _, d := range objectDomains {
		v, ok := present(root, string(d))
		if !ok {
			continue
		}
		if _, isObj := v.(map[string]any); !isObj {
			r.Errors = append(r.Errors, fmt.Sprintf(fmtMustBeObject, d))
			continue
		}
		r.Errors = append(r.Errors, checkSchema(string(d), string(d), v)...)
	}

	r.Summary = summarize(root)
	r.Valid = len(r.Errors) == 0
	return r
}

func summarize(root map[string]any) *Summary {
	s := &Summary{
		Categories: length(root[string(DomainCategories)]),
		Products:   length(root[string(DomainProducts)]),
		Projects:   length(root[string(DomainProjects)]),
		Posts:      length(root[string(DomainPosts)]),
		Inquiries:  length(root[string(DomainInquiries)]),
	}
	_, s.HasSettings = present(root, string(DomainSettings))
	_, s.HasThemes = present(root, string(DomainThemes))

	if themes, ok := root[string(DomainThemes)].(map[string]any); ok {
		s.CustomThemes = length(themes[customThemesKey])
	}
	if analytics, ok := root[string(DomainAnalytics)].(map[string]any); ok {
		s.AnalyticsEvents = length(analytics[analyticsEventsKey])
	}
	s.HasAnalytics = s.AnalyticsEvents > 0
	return s
}

// present treats a JSON null the same as a missing key.
func present(root map[string]any, key string) (any, bool) {
	v, ok := root[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// falsy reports the JSON values that count as an absent _meta: false, zero
// and the empty string.
func falsy(v any) bool {
	switch x := v.(type) {
	case bool:
		return !x
	case float64:
		return x == 0
	case string:
		return x == ""
	}
	return false
}

func length(v any) int {
	if arr, ok := v.([]any); ok {
		return len(arr)
	}
	return 0
}

// withoutVersion drops schemaVersion, whose type problems are warnings.
func withoutVersion(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k != schemaVersionKey {
			out[k] = v
		}
	}
	return out
}

// decodeManifest copies the manifest into a report. Fields of the wrong type
// are left empty; the schema check reports them.
func decodeManifest(m map[string]any) *Manifest {
	out := &Manifest{}
	out.Version, _ = m["version"].(string)
	out.ExportedAt, _ = m["exportedAt"].(string)
	out.AppName, _ = m["appName"].(string)
	out.Source, _ = m["source"].(string)
	if n, ok := m[schemaVersionKey].(float64); ok {
		out.SchemaVersion = versionOf(n)
	}
	out.Features = stringList(m["features"])
	out.MigrationNotes = stringList(m["migrationNotes"])
	return out
}

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// sourceVersion reads the effective schema version from a validated root.
func sourceVersion(root map[string]any) int {
	meta, _ := root[metaKey].(map[string]any)
	n, _ := meta[schemaVersionKey].(float64)
	return versionOf(n).Effective()
}

// toObject normalizes a candidate into a generic JSON object. Go values,
// maps included, go through a JSON round trip so numbers are always float64.
// Anything that is not an object once decoded, including arrays and null, is
// rejected.
func toObject(candidate any) (map[string]any, bool) {
	var raw []byte
	switch c := candidate.(type) {
	case nil:
		return nil, false
	case []byte:
		raw = c
	case json.RawMessage:
		raw = c
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return nil, false
		}
		raw = b
	}

	v, err := Parse(raw)
	if err != nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}
