package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
)

// Config wires an Engine to its environment. Every field is optional.
type Config struct {
	// Store supplies live data for CreateFullBackup.
	Store Store
	// Defaults returns a fully populated value for every domain. It is called
	// once per import and the result is owned by the caller.
	Defaults func() Domains
	// Source is stamped into new manifests as the originating host.
	Source string
	Now    func() time.Time
	Logger *slog.Logger
}

// Engine is the caller-facing API of the backup format. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	store    Store
	defaults func() Domains
	source   string
	now      func() time.Time
	logger   *slog.Logger
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		store:    cfg.Store,
		defaults: cfg.Defaults,
		source:   cfg.Source,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
	if e.defaults == nil {
		e.defaults = StandardDefaults
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// StandardDefaults is the state of a fresh installation: empty lists, the
// default settings and theme, and no analytics.
func StandardDefaults() Domains {
	settings := model.DefaultSettings()
	themes := model.DefaultThemeConfig()
	return Domains{
		Categories: []model.Category{},
		Products:   []model.Product{},
		Projects:   []model.Project{},
		Posts:      []model.Post{},
		Settings:   &settings,
		Themes:     &themes,
		Analytics:  &Analytics{Events: []model.AnalyticsEvent{}},
		Inquiries:  []model.Inquiry{},
	}
}

// Retired returns the domains the current schema keeps in documents but
// never applies to live state.
func Retired() []Domain {
	return retiredBetween(0, CurrentSchemaVersion)
}

// CreateFullBackup snapshots the live store.
func (e *Engine) CreateFullBackup(ctx context.Context, opts Options) (*Document, error) {
	if e.store == nil {
		return nil, fmt.Errorf("create backup: no live store configured")
	}
	live, err := LoadLive(ctx, e.store, e.defaults())
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	return e.Build(live, opts), nil
}

// Build snapshots live using the engine's clock and source.
func (e *Engine) Build(live LiveData, opts Options) *Document {
	return Build(live, opts, Stamp{Now: e.now(), Source: e.source})
}

func (e *Engine) ValidateBackup(candidate any) Report {
	return Validate(candidate)
}

func (e *Engine) MigrateBackup(v Versioned) (*Document, error) {
	return Migrate(v)
}

// DownloadBackup writes doc to w. It returns the filename the download
// should be saved as; an empty filename selects the default for today.
func (e *Engine) DownloadBackup(w io.Writer, doc *Document, filename string) (string, error) {
	if filename == "" {
		filename = DefaultFilename(e.now())
	}
	if err := Write(w, doc); err != nil {
		return "", err
	}
	return filename, nil
}

func (e *Engine) ParseBackupFile(r io.Reader) (any, error) {
	return ReadFrom(r)
}

// ImportBackup validates, migrates and normalizes a candidate. On success
// every domain of the returned document is populated, from the snapshot
// where it carried the domain and from Defaults otherwise. Settings are
// overlaid key by key onto the default settings so fields introduced after
// the backup was taken still get values. The live store is not touched.
func (e *Engine) ImportBackup(candidate any) ImportResult {
	root, ok := toObject(candidate)
	if !ok {
		return ImportResult{Error: msgNotDocument, Rejected: true}
	}
	report := validateRoot(root)
	if !report.Valid {
		return ImportResult{Error: strings.Join(report.Errors, "; "), Rejected: true}
	}

	from := sourceVersion(root)
	defaults := e.defaults()

	root, err := overlaySettings(root, defaults.Settings)
	if err != nil {
		return ImportResult{Error: err.Error()}
	}
	v, err := decode(root)
	if err != nil {
		return ImportResult{Error: err.Error()}
	}

	var present []Domain
	for _, d := range AllDomains {
		if domainsOf(v).Has(d) {
			present = append(present, d)
		}
	}

	doc, err := Migrate(v)
	if err != nil {
		return ImportResult{Error: err.Error()}
	}
	fillDefaults(&doc.Domains, defaults)

	var skipped []Domain
	for _, d := range Retired() {
		if slices.Contains(present, d) {
			skipped = append(skipped, d)
		}
	}

	migrated := from < CurrentSchemaVersion
	if migrated {
		e.logger.Info("snapshot migrated",
			"from", from,
			"to", CurrentSchemaVersion,
			"notes", len(doc.Meta.MigrationNotes),
		)
	}
	if len(skipped) > 0 {
		e.logger.Info("retired domains will not be applied", "domains", skipped)
	}

	return ImportResult{
		Success:     true,
		Migrated:    migrated,
		FromVersion: from,
		ToVersion:   CurrentSchemaVersion,
		Data:        doc,
		Present:     present,
		Skipped:     skipped,
		Notes:       doc.Meta.MigrationNotes,
	}
}

func domainsOf(v Versioned) *Domains {
	switch s := v.(type) {
	case *SnapshotV1:
		return &s.Domains
	case *SnapshotV2:
		return &s.Domains
	}
	return &Domains{}
}

// overlaySettings returns a shallow copy of root whose settings object, if
// present, starts from defaults and takes each top-level key the snapshot
// carries.
func overlaySettings(root map[string]any, defaults *model.SiteSettings) (map[string]any, error) {
	snap, ok := root[string(DomainSettings)].(map[string]any)
	if !ok || defaults == nil {
		return root, nil
	}

	b, err := json.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("encode default settings: %w", err)
	}
	merged := make(map[string]any)
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, fmt.Errorf("encode default settings: %w", err)
	}
	for k, v := range snap {
		merged[k] = v
	}

	out := make(map[string]any, len(root))
	for k, v := range root {
		out[k] = v
	}
	out[string(DomainSettings)] = merged
	return out, nil
}

// fillDefaults populates every absent domain of d from def. Themes and
// analytics values present in the snapshot get empty lists in place of
// missing ones.
func fillDefaults(d *Domains, def Domains) {
	if d.Categories == nil {
		d.Categories = orEmpty(def.Categories)
	}
	if d.Products == nil {
		d.Products = orEmpty(def.Products)
	}
	if d.Projects == nil {
		d.Projects = orEmpty(def.Projects)
	}
	if d.Posts == nil {
		d.Posts = orEmpty(def.Posts)
	}
	if d.Inquiries == nil {
		d.Inquiries = orEmpty(def.Inquiries)
	}
	if d.Settings == nil {
		s := derefOr(def.Settings, model.DefaultSettings)
		d.Settings = &s
	}
	if d.Themes == nil {
		t := derefOr(def.Themes, model.DefaultThemeConfig)
		d.Themes = &t
	}
	d.Themes.CustomThemes = orEmpty(d.Themes.CustomThemes)
	if d.Analytics == nil {
		a := derefOr(def.Analytics, func() Analytics { return Analytics{} })
		d.Analytics = &a
	}
	d.Analytics.Events = orEmpty(d.Analytics.Events)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
