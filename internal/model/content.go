package model

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Order       int    `json:"order"`
}

type Showcase struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

type Product struct {
	ID               int        `json:"id"`
	CategoryID       string     `json:"categoryId"`
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	ShortDescription string     `json:"shortDescription"`
	Description      string     `json:"description"`
	PriceText        string     `json:"priceText"`
	Showcases        []Showcase `json:"showcases"`
	TargetAudience   []string   `json:"targetAudience"`
	Status           string     `json:"status"`
	Featured         *bool      `json:"featured,omitempty"`
}

type GalleryItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Title     string `json:"title,omitempty"`
}

type Project struct {
	ID              int           `json:"id"`
	Title           string        `json:"title"`
	Category        string        `json:"category"`
	Description     string        `json:"description"`
	FullDescription string        `json:"fullDescription"`
	Image           string        `json:"image"`
	Tags            []string      `json:"tags"`
	RelatedProduct  string        `json:"relatedProduct"`
	Status          string        `json:"status"`
	Gallery         []GalleryItem `json:"gallery,omitempty"`
}

type Post struct {
	ID      int      `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Excerpt string   `json:"excerpt"`
	Content string   `json:"content"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Image   string   `json:"image"`
	Status  string   `json:"status"`
}

type Inquiry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
	Read      bool   `json:"read"`
	Replied   bool   `json:"replied"`
}

type AnalyticsEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Page      string         `json:"page"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
	SessionID string         `json:"sessionId"`
}
