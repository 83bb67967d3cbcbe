// Package content owns the live site data and applies import results to it.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
	"github.com/ButBow/kernel-gmbh-sub000/internal/snapshot"
)

// Mode selects how an import is written to live state.
type Mode string

const (
	// ModeReplace discards live data of each domain and writes the snapshot's.
	ModeReplace Mode = "replace"
	// ModeMerge appends snapshot records to live lists and leaves settings
	// alone.
	ModeMerge Mode = "merge"
)

// maxAnalyticsEvents bounds the live event log after a merge.
const maxAnalyticsEvents = 1000

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeMerge:
		return ModeMerge, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// Store is the live key/value state. Replace writes several keys
// atomically.
type Store interface {
	snapshot.Store
	Replace(ctx context.Context, values map[string]any) error
}

// Applied reports what an import wrote.
type Applied struct {
	Mode    Mode              `json:"mode"`
	Domains []snapshot.Domain `json:"domains"`
	Skipped []snapshot.Domain `json:"skipped,omitempty"`
}

// Service reads and writes live data. Imports are serialized so two quick
// submissions cannot interleave their read-modify-write cycles.
type Service struct {
	mu       sync.Mutex
	store    Store
	defaults func() snapshot.Domains
	logger   *slog.Logger
}

func NewService(store Store, defaults func() snapshot.Domains, logger *slog.Logger) *Service {
	if defaults == nil {
		defaults = snapshot.StandardDefaults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, defaults: defaults, logger: logger}
}

// Store returns the underlying live store.
func (s *Service) Store() Store {
	return s.store
}

// Live returns the current value of every domain.
func (s *Service) Live(ctx context.Context) (snapshot.LiveData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.LoadLive(ctx, s.store, s.defaults())
}

// Apply writes a successful import result to live state. Domains retired by
// the current schema are never written. All keys are written in one
// transaction.
func (s *Service) Apply(ctx context.Context, res snapshot.ImportResult, mode Mode) (*Applied, error) {
	if !res.Success || res.Data == nil {
		return nil, fmt.Errorf("apply import: result is not successful")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	live, err := snapshot.LoadLive(ctx, s.store, s.defaults())
	if err != nil {
		return nil, fmt.Errorf("apply import: %w", err)
	}

	doc := res.Data
	values := make(map[string]any)

	applied := &Applied{Mode: mode, Skipped: res.Skipped}
	for _, d := range snapshot.AllDomains {
		if !res.Applicable(d) {
			continue
		}
		key, value, ok := resolve(d, doc, live, mode)
		if !ok {
			continue
		}
		values[key] = value
		applied.Domains = append(applied.Domains, d)
	}

	if err := s.store.Replace(ctx, values); err != nil {
		return nil, fmt.Errorf("apply import: %w", err)
	}

	s.logger.Info("import applied",
		"mode", mode,
		"domains", applied.Domains,
		"skipped", applied.Skipped,
		"migrated", res.Migrated,
	)
	return applied, nil
}

// resolve computes the new live value of domain d. It reports false when
// the domain keeps its live value.
func resolve(d snapshot.Domain, doc *snapshot.Document, live snapshot.LiveData, mode Mode) (string, any, bool) {
	merge := mode == ModeMerge
	switch d {
	case snapshot.DomainCategories:
		return snapshot.KeyCategories, combine(live.Categories, doc.Categories, merge), true
	case snapshot.DomainProducts:
		return snapshot.KeyProducts, combine(live.Products, doc.Products, merge), true
	case snapshot.DomainProjects:
		return snapshot.KeyProjects, combine(live.Projects, doc.Projects, merge), true
	case snapshot.DomainPosts:
		return snapshot.KeyPosts, combine(live.Posts, doc.Posts, merge), true
	case snapshot.DomainInquiries:
		return snapshot.KeyInquiries, combine(live.Inquiries, doc.Inquiries, merge), true
	case snapshot.DomainSettings:
		if merge || doc.Settings == nil {
			return "", nil, false
		}
		return snapshot.KeySettings, *doc.Settings, true
	case snapshot.DomainThemes:
		if doc.Themes == nil {
			return "", nil, false
		}
		if !merge {
			return snapshot.KeyThemes, *doc.Themes, true
		}
		return snapshot.KeyThemes, model.ThemeConfig{
			ActiveThemeID: live.Themes.ActiveThemeID,
			CustomThemes:  combine(live.Themes.CustomThemes, doc.Themes.CustomThemes, true),
		}, true
	case snapshot.DomainAnalytics:
		if doc.Analytics == nil {
			return "", nil, false
		}
		if !merge {
			return snapshot.KeyAnalytics, doc.Analytics.Events, true
		}
		return snapshot.KeyAnalytics, mergeEvents(live.AnalyticsEvents, doc.Analytics.Events), true
	}
	return "", nil, false
}

// combine appends incoming to live in merge mode and returns incoming
// otherwise. The result is never nil.
func combine[T any](live, incoming []T, merge bool) []T {
	if !merge {
		return append([]T{}, incoming...)
	}
	out := make([]T, 0, len(live)+len(incoming))
	out = append(out, live...)
	return append(out, incoming...)
}

// mergeEvents appends events whose id is not yet known and keeps only the
// newest maxAnalyticsEvents.
func mergeEvents(live, incoming []model.AnalyticsEvent) []model.AnalyticsEvent {
	seen := make(map[string]bool, len(live))
	for _, e := range live {
		seen[e.ID] = true
	}
	out := append([]model.AnalyticsEvent{}, live...)
	for _, e := range incoming {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	if len(out) > maxAnalyticsEvents {
		out = out[len(out)-maxAnalyticsEvents:]
	}
	return out
}
