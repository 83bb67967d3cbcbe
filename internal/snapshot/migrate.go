package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned by MigrateValue for candidates that fail
// validation. The wrapped message lists every validation error.
var ErrInvalid = errors.New("invalid snapshot")

// ErrImportFailed marks an import of a valid snapshot that could not be
// decoded or migrated.
var ErrImportFailed = errors.New("snapshot import failed")

// MigrationError reports a migration step that could not be applied. The
// document being migrated is discarded.
type MigrationError struct {
	From int
	To   int
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate snapshot v%d to v%d: %v", e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Migrate brings v up to the current schema. A document already at or past
// the current version is returned as is. Every registered step whose target
// lies above the source version runs in order; versions without a step need
// no change. The result always carries the current schema and product
// versions.
func Migrate(v Versioned) (*Document, error) {
	if v == nil {
		return nil, &MigrationError{To: CurrentSchemaVersion, Err: errors.New("no document")}
	}

	from := v.SchemaVersion()
	if from >= CurrentSchemaVersion {
		return current(v), nil
	}

	work := v
	at := from
	for _, step := range migrations {
		if step.target <= from || step.target > CurrentSchemaVersion {
			continue
		}
		next, err := step.fn(work)
		if err != nil {
			return nil, &MigrationError{From: at, To: step.target, Err: err}
		}
		next.manifest().SchemaVersion = SchemaVersion(step.target)
		work, at = next, step.target
	}

	doc := current(work)
	doc.Meta.SchemaVersion = CurrentSchemaVersion
	doc.Meta.Version = ProductVersion
	return doc, nil
}

// current returns v as a Document. Only the final variant is returned
// unchanged; an older variant is rewrapped when the chain had nothing left
// to do for it.
func current(v Versioned) *Document {
	switch s := v.(type) {
	case *SnapshotV2:
		return s
	case *SnapshotV1:
		return &SnapshotV2{Meta: s.Meta, Domains: s.Domains}
	}
	panic(fmt.Sprintf("snapshot: unknown variant %T", v))
}

// MigrateValue validates an untrusted candidate, decodes it and migrates
// it. Defaults are not filled; use Engine.ImportBackup for that.
func MigrateValue(candidate any) (*Document, error) {
	root, ok := toObject(candidate)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, msgNotDocument)
	}
	if r := validateRoot(root); !r.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(r.Errors, "; "))
	}
	v, err := decode(root)
	if err != nil {
		return nil, err
	}
	return Migrate(v)
}

// decode reads a validated root into the variant for its schema version.
func decode(root map[string]any) (Versioned, error) {
	v := variantFor(sourceVersion(root))
	b, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return v, nil
}
