package snapshot

import (
	"context"
	"fmt"

	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
)

// Store is the live key/value state of the site. Get decodes the value
// stored under key into dst and reports whether the key existed.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// Keys of the live store, one per domain.
const (
	KeyCategories = "cms_categories"
	KeyProducts   = "cms_products"
	KeyProjects   = "cms_projects"
	KeyPosts      = "cms_posts"
	KeySettings   = "cms_settings"
	KeyThemes     = "cms_themes"
	KeyAnalytics  = "cms_analytics"
	KeyInquiries  = "cms_inquiries"
)

// Get reads key from s, returning def when the key is unset. Decoding
// happens on top of def, so struct fields missing from the stored value keep
// their defaults.
func Get[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	v := def
	ok, err := s.Get(ctx, key, &v)
	if err != nil {
		return def, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// LoadLive reads every domain from s. Unset keys fall back to defaults.
func LoadLive(ctx context.Context, s Store, defaults Domains) (LiveData, error) {
	var (
		live LiveData
		err  error
	)
	if live.Categories, err = Get(ctx, s, KeyCategories, defaults.Categories); err != nil {
		return LiveData{}, err
	}
	if live.Products, err = Get(ctx, s, KeyProducts, defaults.Products); err != nil {
		return LiveData{}, err
	}
	if live.Projects, err = Get(ctx, s, KeyProjects, defaults.Projects); err != nil {
		return LiveData{}, err
	}
	if live.Posts, err = Get(ctx, s, KeyPosts, defaults.Posts); err != nil {
		return LiveData{}, err
	}
	if live.Settings, err = Get(ctx, s, KeySettings, derefOr(defaults.Settings, model.DefaultSettings)); err != nil {
		return LiveData{}, err
	}
	if live.Themes, err = Get(ctx, s, KeyThemes, derefOr(defaults.Themes, model.DefaultThemeConfig)); err != nil {
		return LiveData{}, err
	}
	var events []model.AnalyticsEvent
	if defaults.Analytics != nil {
		events = defaults.Analytics.Events
	}
	if live.AnalyticsEvents, err = Get(ctx, s, KeyAnalytics, events); err != nil {
		return LiveData{}, err
	}
	if live.Inquiries, err = Get(ctx, s, KeyInquiries, defaults.Inquiries); err != nil {
		return LiveData{}, err
	}
	return live, nil
}

func derefOr[T any](p *T, fallback func() T) T {
	if p != nil {
		return *p
	}
	return fallback()
}
