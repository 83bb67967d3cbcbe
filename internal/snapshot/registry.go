package snapshot

import "fmt"

const (
	// CurrentSchemaVersion is the shape this build writes and the target of
	// every migration chain.
	CurrentSchemaVersion = 2
	// ProductVersion is the human-readable release stamped into manifests.
	ProductVersion = "2.0.0"
	AppName        = "Kernel CMS"
	AppSlug        = "kernel-cms"
)

// migrationFunc turns a document one version behind its step's target into
// the target's shape.
type migrationFunc func(Versioned) (Versioned, error)

type migrationStep struct {
	target int
	fn     migrationFunc
	// retires lists domains the target version no longer imports. Their data
	// stays in the document; the import path skips applying them.
	retires []Domain
}

// migrations is ordered by target. Versions without an entry need no change.
var migrations = []migrationStep{
	{target: 2, fn: migrateToV2, retires: []Domain{DomainProjects, DomainPosts}},
}

// variants maps the first schema version a Go type can hold to its
// constructor. A document decodes into the newest variant not newer than
// its own version, so numbering gaps fall into the previous shape.
var variants = []struct {
	since int
	alloc func() Versioned
}{
	{since: 1, alloc: func() Versioned { return &SnapshotV1{} }},
	{since: 2, alloc: func() Versioned { return &SnapshotV2{} }},
}

func variantFor(version int) Versioned {
	v := variants[0].alloc()
	for _, vt := range variants {
		if vt.since <= version {
			v = vt.alloc()
		}
	}
	return v
}

// MigrationTargets returns the schema versions that have a registered
// migration, in chain order.
func MigrationTargets() []int {
	out := make([]int, 0, len(migrations))
	for _, m := range migrations {
		out = append(out, m.target)
	}
	return out
}

// retiredBetween collects the domains retired by any step in (from, to].
func retiredBetween(from, to int) []Domain {
	var out []Domain
	for _, m := range migrations {
		if m.target > from && m.target <= to {
			out = append(out, m.retires...)
		}
	}
	return out
}

// currentFeatures is what a schema 2 document advertises once portfolio and
// blog are gone.
var currentFeatures = []string{
	string(DomainCategories),
	string(DomainProducts),
	string(DomainSettings),
	string(DomainThemes),
	string(DomainAnalytics),
	string(DomainInquiries),
}

func migrateToV2(in Versioned) (Versioned, error) {
	v1, ok := in.(*SnapshotV1)
	if !ok {
		return nil, fmt.Errorf("expected schema 1 document, got %T", in)
	}

	meta := v1.Meta
	notes := append([]string(nil), meta.MigrationNotes...)
	if n := len(v1.Projects); n > 0 {
		notes = append(notes, fmt.Sprintf("Portfolio: %d %s skipped (feature removed)", n, plural(n, "project", "projects")))
	}
	if n := len(v1.Posts); n > 0 {
		notes = append(notes, fmt.Sprintf("Blog: %d %s skipped (feature removed)", n, plural(n, "post", "posts")))
	}
	meta.MigrationNotes = notes
	meta.Features = append([]string(nil), currentFeatures...)

	return &SnapshotV2{Meta: meta, Domains: v1.Domains}, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
