// Package snapshot implements the portable backup format of the CMS: building
// snapshots from live data, validating untrusted files, migrating documents
// written by older schema versions, and resolving them into a fully
// populated document ready to be applied.
package snapshot

import (
	"encoding/json"
	"math"
	"slices"

	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
)

// Domain names one category of data carried by a snapshot. The string value
// is the document key.
type Domain string

const (
	DomainCategories Domain = "categories"
	DomainProducts   Domain = "products"
	DomainProjects   Domain = "projects"
	DomainPosts      Domain = "posts"
	DomainSettings   Domain = "settings"
	DomainThemes     Domain = "themes"
	DomainAnalytics  Domain = "analytics"
	DomainInquiries  Domain = "inquiries"
)

// AllDomains is the document order of every optional domain.
var AllDomains = []Domain{
	DomainCategories,
	DomainProducts,
	DomainProjects,
	DomainPosts,
	DomainSettings,
	DomainThemes,
	DomainAnalytics,
	DomainInquiries,
}

// listDomains are the domains that must be JSON arrays.
var listDomains = []Domain{
	DomainCategories,
	DomainProducts,
	DomainProjects,
	DomainPosts,
	DomainInquiries,
}

// objectDomains are the domains that must be JSON objects.
var objectDomains = []Domain{
	DomainSettings,
	DomainThemes,
	DomainAnalytics,
}

// SchemaVersion is the manifest's numeric schema tag. Decoding never fails:
// anything that is not a JSON number reads as zero, which Effective maps to
// the first version.
type SchemaVersion int

func (v *SchemaVersion) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		*v = 0
		return nil
	}
	*v = versionOf(n)
	return nil
}

// maxSchemaVersion caps decoded versions so huge values stay in the future
// instead of overflowing.
const maxSchemaVersion = math.MaxInt32

// versionOf converts a JSON number to a schema version. Fractions are
// floored; callers compare the raw number against CurrentSchemaVersion
// before relying on the result.
func versionOf(n float64) SchemaVersion {
	switch {
	case n < 1:
		return 0
	case n > maxSchemaVersion:
		return maxSchemaVersion
	}
	return SchemaVersion(math.Floor(n))
}

// Effective returns the version used for migration decisions.
func (v SchemaVersion) Effective() int {
	if v < 1 {
		return 1
	}
	return int(v)
}

// Manifest is the _meta block of every snapshot.
type Manifest struct {
	Version        string        `json:"version"`
	SchemaVersion  SchemaVersion `json:"schemaVersion,omitzero"`
	ExportedAt     string        `json:"exportedAt"`
	AppName        string        `json:"appName"`
	Source         string        `json:"source,omitempty"`
	Features       []string      `json:"features,omitempty"`
	MigrationNotes []string      `json:"migrationNotes,omitempty"`
}

// Analytics is the analytics domain.
type Analytics struct {
	Events           []model.AnalyticsEvent `json:"events"`
	IncludeAnalytics bool                   `json:"includeAnalytics"`
}

// Domains holds the optional data of a snapshot. A nil slice or pointer
// means the domain was not selected; an empty non-nil slice is a selected
// domain that had no records.
type Domains struct {
	Categories []model.Category    `json:"categories,omitzero"`
	Products   []model.Product     `json:"products,omitzero"`
	Projects   []model.Project     `json:"projects,omitzero"`
	Posts      []model.Post        `json:"posts,omitzero"`
	Settings   *model.SiteSettings `json:"settings,omitempty"`
	Themes     *model.ThemeConfig  `json:"themes,omitempty"`
	Analytics  *Analytics          `json:"analytics,omitempty"`
	Inquiries  []model.Inquiry     `json:"inquiries,omitzero"`
}

// Has reports whether d is present.
func (d *Domains) Has(domain Domain) bool {
	switch domain {
	case DomainCategories:
		return d.Categories != nil
	case DomainProducts:
		return d.Products != nil
	case DomainProjects:
		return d.Projects != nil
	case DomainPosts:
		return d.Posts != nil
	case DomainSettings:
		return d.Settings != nil
	case DomainThemes:
		return d.Themes != nil
	case DomainAnalytics:
		return d.Analytics != nil
	case DomainInquiries:
		return d.Inquiries != nil
	}
	return false
}

// Versioned is a snapshot decoded into the Go shape of one schema version.
// The set of implementations is closed.
type Versioned interface {
	SchemaVersion() int
	manifest() *Manifest
}

// SnapshotV1 is the layout written before 2.0, when portfolio projects and
// blog posts were live domains.
type SnapshotV1 struct {
	Meta Manifest `json:"_meta"`
	Domains
}

func (s *SnapshotV1) SchemaVersion() int  { return s.Meta.SchemaVersion.Effective() }
func (s *SnapshotV1) manifest() *Manifest { return &s.Meta }

// SnapshotV2 keeps projects and posts for older tooling but no longer
// imports them.
type SnapshotV2 struct {
	Meta Manifest `json:"_meta"`
	Domains
}

func (s *SnapshotV2) SchemaVersion() int  { return s.Meta.SchemaVersion.Effective() }
func (s *SnapshotV2) manifest() *Manifest { return &s.Meta }

// Document is the current schema's snapshot.
type Document = SnapshotV2

// Summary counts what a snapshot carries.
type Summary struct {
	Categories      int  `json:"categories"`
	Products        int  `json:"products"`
	Projects        int  `json:"projects"`
	Posts           int  `json:"posts"`
	Inquiries       int  `json:"inquiries"`
	CustomThemes    int  `json:"customThemes"`
	AnalyticsEvents int  `json:"analyticsEvents"`
	HasSettings     bool `json:"hasSettings"`
	HasThemes       bool `json:"hasThemes"`
	HasAnalytics    bool `json:"hasAnalytics"`
}

// Report is the outcome of Validate. Valid is true iff Errors is empty.
type Report struct {
	Valid    bool      `json:"valid"`
	Errors   []string  `json:"errors"`
	Warnings []string  `json:"warnings"`
	Meta     *Manifest `json:"meta,omitempty"`
	Summary  *Summary  `json:"summary,omitempty"`
}

// ImportResult is built once per import attempt and not changed afterwards.
type ImportResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// Rejected is set when the candidate itself failed validation, as
	// opposed to a failure while decoding or migrating a valid one.
	Rejected    bool      `json:"rejected,omitempty"`
	Migrated    bool      `json:"migrated"`
	FromVersion int       `json:"fromVersion,omitempty"`
	ToVersion   int       `json:"toVersion,omitempty"`
	Data        *Document `json:"data,omitempty"`
	// Present lists the domains the source snapshot actually carried.
	Present []Domain `json:"present,omitempty"`
	// Skipped lists retired domains the source carried. Their data stays in
	// Data but is never applied.
	Skipped []Domain `json:"skipped,omitempty"`
	Notes   []string `json:"notes,omitempty"`
}

// Applicable reports whether the caller should write domain d to live state.
func (r ImportResult) Applicable(d Domain) bool {
	return r.Success && !slices.Contains(Retired(), d)
}
