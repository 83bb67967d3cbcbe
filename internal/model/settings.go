package model

import "time"

// Entry is a single row of the live key/value store.
type Entry struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Milestone struct {
	Year        string `json:"year"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type CoreValue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type StatItem struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Testimonial struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Company  string `json:"company"`
	Image    string `json:"image"`
	Quote    string `json:"quote"`
	Rating   *int   `json:"rating,omitempty"`
}

type Partner struct {
	Name  string `json:"name"`
	Logo  string `json:"logo"`
	Link  string `json:"link,omitempty"`
	Quote string `json:"quote,omitempty"`
}

type Executive struct {
	Name     string `json:"name"`
	Position string `json:"position"`
}

type Promotion struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DiscountCode    string  `json:"discountCode"`
	DiscountPercent float64 `json:"discountPercent"`
	DiscountType    string  `json:"discountType"`
	ValidFrom       string  `json:"validFrom"`
	ValidUntil      string  `json:"validUntil"`
	IsActive        bool    `json:"isActive"`
	ShowInBanner    bool    `json:"showInBanner"`
	Template        string  `json:"template"`
	Priority        int     `json:"priority"`
}

type ChatbotSettings struct {
	Enabled              bool     `json:"enabled"`
	WelcomeMessage       string   `json:"welcomeMessage"`
	PlaceholderText      string   `json:"placeholderText"`
	SuggestedQuestions   []string `json:"suggestedQuestions"`
	OllamaURL            string   `json:"ollamaUrl"`
	OllamaModel          string   `json:"ollamaModel"`
	MaxTokens            int      `json:"maxTokens"`
	Temperature          float64  `json:"temperature"`
	SystemPromptAddition string   `json:"systemPromptAddition"`
	SystemPromptMarkdown string   `json:"systemPromptMarkdown"`
	SystemPromptFileName string   `json:"systemPromptFileName"`
}

// SiteSettings is the settings domain. Fields carry no omitempty so an
// exported object always lists every key; the import path overlays a
// snapshot's keys onto DefaultSettings one key at a time.
type SiteSettings struct {
	CompanyName         string           `json:"companyName"`
	OwnerName           string           `json:"ownerName"`
	HeroTitle           string           `json:"heroTitle"`
	HeroSubtitle        string           `json:"heroSubtitle"`
	HeroCta             string           `json:"heroCta"`
	WhyWorkWithMe       []string         `json:"whyWorkWithMe"`
	AboutText           string           `json:"aboutText"`
	AboutImage          string           `json:"aboutImage"`
	AboutTagline        string           `json:"aboutTagline"`
	AboutMission        string           `json:"aboutMission"`
	Milestones          []Milestone      `json:"milestones"`
	CoreValues          []CoreValue      `json:"coreValues"`
	Stats               []StatItem       `json:"stats"`
	Testimonials        []Testimonial    `json:"testimonials"`
	Partners            []Partner        `json:"partners"`
	Skills              []string         `json:"skills"`
	ContactEmail        string           `json:"contactEmail"`
	ContactPhone        string           `json:"contactPhone"`
	ContactLocation     string           `json:"contactLocation"`
	SocialInstagram     string           `json:"socialInstagram"`
	SocialLinkedin      string           `json:"socialLinkedin"`
	SocialTwitter       string           `json:"socialTwitter"`
	SocialYoutube       string           `json:"socialYoutube"`
	SocialTiktok        string           `json:"socialTiktok"`
	SocialFacebook      string           `json:"socialFacebook"`
	FooterText          string           `json:"footerText"`
	ImpressumText       string           `json:"impressumText"`
	DatenschutzText     string           `json:"datenschutzText"`
	CompanyHeadquarters string           `json:"companyHeadquarters"`
	TradeRegistry       string           `json:"tradeRegistry"`
	UIDNumber           string           `json:"uidNumber"`
	Executives          []Executive      `json:"executives"`
	NotionEnabled       bool             `json:"notionEnabled"`
	NotionDatabaseID    string           `json:"notionDatabaseId"`
	NotionAPIKey        string           `json:"notionApiKey"`
	APIBaseURL          string           `json:"apiBaseUrl"`
	Promotions          []Promotion      `json:"promotions"`
	CookieSettings      map[string]any   `json:"cookieSettings"`
	ChatbotSettings     *ChatbotSettings `json:"chatbotSettings"`
}
