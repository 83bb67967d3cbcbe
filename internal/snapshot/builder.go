package snapshot

import (
	"time"

	"github.com/ButBow/kernel-gmbh-sub000/internal/model"
)

// exportedAtLayout matches the millisecond UTC timestamps older exports carry.
const exportedAtLayout = "2006-01-02T15:04:05.000Z"

// LiveData is the in-memory value of every domain at export time.
type LiveData struct {
	Categories      []model.Category
	Products        []model.Product
	Projects        []model.Project
	Posts           []model.Post
	Settings        model.SiteSettings
	Themes          model.ThemeConfig
	AnalyticsEvents []model.AnalyticsEvent
	Inquiries       []model.Inquiry
}

// Options selects the domains an export carries.
type Options struct {
	Categories bool
	Products   bool
	Projects   bool
	Posts      bool
	Settings   bool
	Themes     bool
	Analytics  bool
	Inquiries  bool
}

// DefaultOptions selects every domain except analytics events, which are
// only exported on request.
func DefaultOptions() Options {
	return Options{
		Categories: true,
		Products:   true,
		Projects:   true,
		Posts:      true,
		Settings:   true,
		Themes:     true,
		Analytics:  false,
		Inquiries:  true,
	}
}

// AllOptions selects every domain.
func AllOptions() Options {
	o := DefaultOptions()
	o.Analytics = true
	return o
}

// Includes reports whether d is selected.
func (o Options) Includes(d Domain) bool {
	if f := o.field(d); f != nil {
		return *f
	}
	return false
}

// Set selects or deselects domain d. Unknown domains are ignored.
func (o *Options) Set(d Domain, on bool) {
	if f := o.field(d); f != nil {
		*f = on
	}
}

func (o *Options) field(d Domain) *bool {
	switch d {
	case DomainCategories:
		return &o.Categories
	case DomainProducts:
		return &o.Products
	case DomainProjects:
		return &o.Projects
	case DomainPosts:
		return &o.Posts
	case DomainSettings:
		return &o.Settings
	case DomainThemes:
		return &o.Themes
	case DomainAnalytics:
		return &o.Analytics
	case DomainInquiries:
		return &o.Inquiries
	}
	return nil
}

// Stamp is the provenance written into a new manifest. Source is the host
// the export came from and may be empty.
type Stamp struct {
	Now    time.Time
	Source string
}

// Build assembles a current-schema document from live data. Unselected
// domains are left out entirely; selected list domains are copied so later
// edits to live data do not leak into the document.
func Build(live LiveData, opts Options, stamp Stamp) *Document {
	now := stamp.Now
	if now.IsZero() {
		now = time.Now()
	}
	doc := &Document{
		Meta: Manifest{
			Version:       ProductVersion,
			SchemaVersion: CurrentSchemaVersion,
			ExportedAt:    now.UTC().Format(exportedAtLayout),
			AppName:       AppName,
			Source:        stamp.Source,
		},
	}

	if opts.Categories {
		doc.Categories = cloneList(live.Categories)
	}
	if opts.Products {
		doc.Products = cloneList(live.Products)
	}
	if opts.Projects {
		doc.Projects = cloneList(live.Projects)
	}
	if opts.Posts {
		doc.Posts = cloneList(live.Posts)
	}
	if opts.Settings {
		s := live.Settings
		doc.Settings = &s
	}
	if opts.Themes {
		doc.Themes = &model.ThemeConfig{
			ActiveThemeID: live.Themes.ActiveThemeID,
			CustomThemes:  cloneList(live.Themes.CustomThemes),
		}
	}
	if opts.Analytics {
		doc.Analytics = &Analytics{
			Events:           cloneList(live.AnalyticsEvents),
			IncludeAnalytics: true,
		}
	}
	if opts.Inquiries {
		doc.Inquiries = cloneList(live.Inquiries)
	}

	for _, d := range AllDomains {
		if doc.Has(d) {
			doc.Meta.Features = append(doc.Meta.Features, string(d))
		}
	}
	return doc
}

// cloneList always returns a non-nil slice so an empty selected domain is
// still written as [].
func cloneList[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
