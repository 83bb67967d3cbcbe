package snapshot

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// maxSchemaErrors caps how many record errors are reported per domain so a
// badly broken file does not produce thousands of lines.
const maxSchemaErrors = 5

const manifestSchema = "manifest"

var (
	schemasOnce sync.Once
	schemas     map[string]*gojsonschema.Schema
	schemasErr  error
)

// compiledSchemas compiles the embedded schemas once. The files ship with
// the binary, so a failure here is a build defect rather than bad input.
func compiledSchemas() (map[string]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		names := []string{manifestSchema}
		for _, d := range AllDomains {
			names = append(names, string(d))
		}

		schemas = make(map[string]*gojsonschema.Schema, len(names))
		for _, name := range names {
			b, err := schemaFS.ReadFile("schemas/" + name + ".json")
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			schemas[name] = s
		}
	})
	return schemas, schemasErr
}

// checkSchema validates value against the named schema and returns one
// message per violation, each prefixed with label.
func checkSchema(name, label string, value any) []string {
	all, err := compiledSchemas()
	if err != nil {
		return []string{err.Error()}
	}
	s, ok := all[name]
	if !ok {
		return nil
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", label, err)}
	}
	if result.Valid() {
		return nil
	}

	var out []string
	for i, desc := range result.Errors() {
		if i == maxSchemaErrors {
			out = append(out, fmt.Sprintf("%s: %d more problem(s)", label, len(result.Errors())-maxSchemaErrors))
			break
		}
		out = append(out, fmt.Sprintf("%s%s", label, describe(desc)))
	}
	return out
}

// describe renders a schema violation as a field path plus message. Array
// indexes in the path gojsonschema reports are bracketed, so "2.name" reads
// "[2].name".
func describe(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == "(root)" {
		return ": " + desc.Description()
	}
	parts := strings.Split(field, ".")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if isIndex(p) {
			b.WriteString("[" + p + "]")
			continue
		}
		b.WriteByte('.')
		b.WriteString(p)
	}
	return b.String() + ": " + desc.Description()
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
