package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
)

// memStore is a map-backed Store.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memStore) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func newTestEngine(store Store) *Engine {
	return NewEngine(Config{
		Store:  store,
		Source: "test",
		Now:    func() time.Time { return fixedNow },
	})
}

func TestImportRoundTrip(t *testing.T) {
	e := newTestEngine(nil)
	live := sampleLive()

	b, err := Serialize(e.Build(live, AllOptions()))
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	parsed, err := Parse(b)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res := e.ImportBackup(parsed)
	if !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	if res.Migrated {
		t.Error("current document reported as migrated")
	}

	got := res.Data
	checks := []struct {
		name      string
		got, want any
	}{
		{"categories", got.Categories, live.Categories},
		{"products", got.Products, live.Products},
		{"projects", got.Projects, live.Projects},
		{"posts", got.Posts, live.Posts},
		{"settings", *got.Settings, live.Settings},
		{"themes", *got.Themes, live.Themes},
		{"analytics", got.Analytics.Events, live.AnalyticsEvents},
		{"inquiries", got.Inquiries, live.Inquiries},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s differs after round trip:\n got %+v\nwant %+v", c.name, c.got, c.want)
		}
	}
}

func TestImportFillsDefaults(t *testing.T) {
	e := newTestEngine(nil)
	res := e.ImportBackup(mustParse(t, `{"_meta":{"schemaVersion":2},"categories":[{"id":"a","name":"A"}]}`))
	if !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	d := res.Data
	if d.Products == nil || d.Projects == nil || d.Posts == nil || d.Inquiries == nil {
		t.Error("list domain left nil")
	}
	if d.Settings == nil || d.Themes == nil || d.Analytics == nil {
		t.Fatal("object domain left nil")
	}
	if d.Themes.ActiveThemeID != model.DefaultThemeID || d.Themes.CustomThemes == nil {
		t.Errorf("themes = %+v, want defaults", d.Themes)
	}
	if d.Analytics.Events == nil {
		t.Error("analytics events nil")
	}
	if !reflect.DeepEqual(*d.Settings, model.DefaultSettings()) {
		t.Error("settings are not the defaults")
	}
	if !reflect.DeepEqual(res.Present, []Domain{DomainCategories}) {
		t.Errorf("present = %v, want [categories]", res.Present)
	}
}

func TestImportNormalizesNestedLists(t *testing.T) {
	e := newTestEngine(nil)
	res := e.ImportBackup(mustParse(t, `{"_meta":{"schemaVersion":2},"themes":{"activeThemeId":"x"},"analytics":{"includeAnalytics":false}}`))
	if !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	if res.Data.Themes.CustomThemes == nil || res.Data.Analytics.Events == nil {
		t.Errorf("nested lists left nil: themes %+v analytics %+v", res.Data.Themes, res.Data.Analytics)
	}
	if res.Data.Themes.ActiveThemeID != "x" {
		t.Errorf("activeThemeId = %q, want x", res.Data.Themes.ActiveThemeID)
	}
}

func TestImportSettingsOverlayDefaults(t *testing.T) {
	e := newTestEngine(nil)
	res := e.ImportBackup(mustParse(t, `{"_meta":{"schemaVersion":2},"settings":{"companyName":"Old Co","skills":["Schnitt"]}}`))
	if !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	s := res.Data.Settings
	def := model.DefaultSettings()
	if s.CompanyName != "Old Co" {
		t.Errorf("companyName = %q, want Old Co", s.CompanyName)
	}
	if !reflect.DeepEqual(s.Skills, []string{"Schnitt"}) {
		t.Errorf("skills = %v", s.Skills)
	}
	if s.HeroTitle != def.HeroTitle {
		t.Errorf("heroTitle = %q, want default", s.HeroTitle)
	}
	if !reflect.DeepEqual(s.ChatbotSettings, def.ChatbotSettings) {
		t.Errorf("chatbotSettings = %+v, want default", s.ChatbotSettings)
	}
}

func TestImportSettingsOverlayIsShallow(t *testing.T) {
	e := newTestEngine(nil)
	res := e.ImportBackup(mustParse(t, `{"_meta":{"schemaVersion":2},"settings":{"chatbotSettings":{"enabled":false}}}`))
	if !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	cb := res.Data.Settings.ChatbotSettings
	if cb.Enabled {
		t.Error("enabled = true, want false")
	}
	// The nested object replaces the default wholesale.
	if cb.WelcomeMessage != "" {
		t.Errorf("welcomeMessage = %q, want empty", cb.WelcomeMessage)
	}
}

func TestImportScenarioMigratesV1(t *testing.T) {
	res := newTestEngine(nil).ImportBackup(mustParse(t, scenarioV1))
	if !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	if !res.Migrated || res.FromVersion != 1 || res.ToVersion != 2 {
		t.Errorf("migrated = %v from %d to %d, want true 1 2", res.Migrated, res.FromVersion, res.ToVersion)
	}
	notes := res.Data.Meta.MigrationNotes
	if len(notes) != 2 || !strings.Contains(notes[0], "1 project") || !strings.Contains(notes[1], "1 post") {
		t.Errorf("notes = %v", notes)
	}
	if !reflect.DeepEqual(res.Skipped, []Domain{DomainProjects, DomainPosts}) {
		t.Errorf("skipped = %v", res.Skipped)
	}
	if res.Applicable(DomainProjects) || res.Applicable(DomainPosts) {
		t.Error("retired domains reported applicable")
	}
	if !res.Applicable(DomainCategories) {
		t.Error("categories not applicable")
	}
}

func TestImportScenarioMissingMetadata(t *testing.T) {
	e := newTestEngine(nil)
	report := e.ValidateBackup(mustParse(t, `{}`))
	res := e.ImportBackup(mustParse(t, `{}`))

	if res.Success || res.Migrated || res.Data != nil {
		t.Errorf("result = %+v, want failure without data", res)
	}
	if res.Error != strings.Join(report.Errors, "; ") {
		t.Errorf("error = %q, want %q", res.Error, strings.Join(report.Errors, "; "))
	}
	if !strings.Contains(res.Error, "missing metadata") {
		t.Errorf("error = %q", res.Error)
	}
	if res.Applicable(DomainCategories) {
		t.Error("failed import reported applicable")
	}
}

func TestImportScenarioShapeError(t *testing.T) {
	res := newTestEngine(nil).ImportBackup(mustParse(t, `{"_meta":{"schemaVersion":2},"categories":"not-an-array"}`))
	if res.Success {
		t.Fatal("import succeeded, want failure")
	}
	if !strings.Contains(res.Error, "categories") {
		t.Errorf("error = %q, want categories named", res.Error)
	}
}

func TestImportUsesInjectedDefaults(t *testing.T) {
	e := NewEngine(Config{Defaults: func() Domains {
		d := StandardDefaults()
		d.Categories = []model.Category{{ID: "seed"}}
		return d
	}})
	res := e.ImportBackup(mustParse(t, `{"_meta":{"schemaVersion":2}}`))
	if !res.Success {
		t.Fatalf("import failed: %s", res.Error)
	}
	if len(res.Data.Categories) != 1 || res.Data.Categories[0].ID != "seed" {
		t.Errorf("categories = %+v, want injected default", res.Data.Categories)
	}
}

func TestCreateFullBackupReadsStore(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	live := sampleLive()
	if err := store.Set(ctx, KeyCategories, live.Categories); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, KeySettings, map[string]any{"companyName": "Stored"}); err != nil {
		t.Fatal(err)
	}

	doc, err := newTestEngine(store).CreateFullBackup(ctx, DefaultOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !reflect.DeepEqual(doc.Categories, live.Categories) {
		t.Errorf("categories = %+v", doc.Categories)
	}
	if doc.Products == nil || len(doc.Products) != 0 {
		t.Errorf("products = %+v, want empty", doc.Products)
	}
	if doc.Settings.CompanyName != "Stored" {
		t.Errorf("companyName = %q", doc.Settings.CompanyName)
	}
	if doc.Settings.HeroTitle != model.DefaultSettings().HeroTitle {
		t.Error("stored settings lost default fields")
	}
	if doc.Meta.Source != "test" {
		t.Errorf("source = %q", doc.Meta.Source)
	}
}

func TestCreateFullBackupWithoutStore(t *testing.T) {
	if _, err := newTestEngine(nil).CreateFullBackup(context.Background(), DefaultOptions()); err == nil {
		t.Error("expected error without store")
	}
}

func TestDownloadBackup(t *testing.T) {
	e := newTestEngine(nil)
	var buf bytes.Buffer
	name, err := e.DownloadBackup(&buf, e.Build(sampleLive(), DefaultOptions()), "")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if name != "kernel-cms-backup-2024-05-01.json" {
		t.Errorf("filename = %q", name)
	}
	v, err := e.ParseBackupFile(&buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r := e.ValidateBackup(v); !r.Valid {
		t.Errorf("downloaded backup invalid: %v", r.Errors)
	}
}

func TestMigrateBackupV1(t *testing.T) {
	e := newTestEngine(nil)
	v1 := &SnapshotV1{
		Meta:    Manifest{SchemaVersion: 1},
		Domains: Domains{Posts: []model.Post{{ID: 1}, {ID: 2}}},
	}
	doc, err := e.MigrateBackup(v1)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if doc.SchemaVersion() != CurrentSchemaVersion || doc.Meta.Version != ProductVersion {
		t.Errorf("meta = %+v", doc.Meta)
	}
	if want := []string{"Blog: 2 posts skipped (feature removed)"}; !reflect.DeepEqual(doc.Meta.MigrationNotes, want) {
		t.Errorf("notes = %v, want %v", doc.Meta.MigrationNotes, want)
	}
}

func TestImportMigrationFailureIsNotRejection(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = []migrationStep{{target: 2, fn: func(Versioned) (Versioned, error) {
		return nil, errors.New("step broke")
	}}}

	res := newTestEngine(nil).ImportBackup(mustParse(t, `{"_meta":{"schemaVersion":1}}`))
	if res.Success || res.Rejected {
		t.Fatalf("result = %+v, want unrejected failure", res)
	}
	if !strings.Contains(res.Error, "step broke") {
		t.Errorf("error = %q", res.Error)
	}

	invalid := newTestEngine(nil).ImportBackup(mustParse(t, `{"categories":[]}`))
	if !invalid.Rejected {
		t.Errorf("invalid snapshot not marked rejected: %+v", invalid)
	}
}
