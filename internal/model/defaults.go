package model

const DefaultThemeID = "default-amber"

// DefaultSettings returns the settings a fresh installation starts with.
// Each call returns a new value; callers may mutate it.
func DefaultSettings() SiteSettings {
	return SiteSettings{
		CompanyName:  "Mein Firmenname",
		OwnerName:    "Max Mustermann",
		HeroTitle:    "Effizienz durch Technologie & Kreativität",
		HeroSubtitle: "Ich helfe Firmen, Creators und Einzelunternehmern, ihre Arbeit mit KI und Automatisierung schneller, sauberer und kreativer zu machen.",
		HeroCta:      "Projekt anfragen",
		WhyWorkWithMe: []string{
			"Schnelle, zuverlässige Umsetzung",
			"Technisch & kreativ stark",
			"Modular, zukunftssicher",
			"Fokus auf echte Effizienz",
		},
		AboutText:    "Als Einzelunternehmer verbinde ich technisches Know-how mit kreativem Denken.",
		AboutImage:   "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=400&q=80",
		AboutTagline: "Technologie trifft Kreativität",
		AboutMission: "Unternehmen und Creators dabei helfen, das volle Potenzial moderner Technologien auszuschöpfen.",
		Milestones: []Milestone{
			{Year: "2024", Title: "Gründung", Description: "Start als Einzelunternehmer mit Fokus auf AI & Automation"},
			{Year: "2023", Title: "Erste Projekte", Description: "Erfolgreiche Video- und Automatisierungsprojekte für KMU"},
		},
		CoreValues: []CoreValue{
			{Title: "Qualität", Description: "Jedes Projekt verdient höchste Sorgfalt und Präzision", Icon: "Star"},
			{Title: "Transparenz", Description: "Offene Kommunikation und faire Preise", Icon: "Eye"},
		},
		Stats: []StatItem{
			{Value: "50+", Label: "Projekte"},
			{Value: "3+", Label: "Jahre Erfahrung"},
		},
		Testimonials:    []Testimonial{},
		Partners:        []Partner{},
		Skills:          []string{"Video & Content Production", "AI & Automation", "Programmierung"},
		ContactEmail:    "kontakt@meinefirma.ch",
		ContactPhone:    "+41 79 123 45 67",
		ContactLocation: "Zürich, Schweiz",
		FooterText:      "© Mein Firmenname. Alle Rechte vorbehalten.",
		Executives:      []Executive{},
		APIBaseURL:      "",
		Promotions:      []Promotion{},
		CookieSettings:  map[string]any{"enabled": true},
		ChatbotSettings: &ChatbotSettings{
			Enabled:            true,
			WelcomeMessage:     "Willkommen! Wie kann ich Ihnen helfen?",
			PlaceholderText:    "Schreiben Sie eine Nachricht...",
			SuggestedQuestions: []string{"Preise & Pakete", "Kontakt"},
			OllamaURL:          "http://localhost:11434",
			OllamaModel:        "llama3.2:latest",
			MaxTokens:          1024,
			Temperature:        0.7,
		},
	}
}

func DefaultThemeConfig() ThemeConfig {
	return ThemeConfig{
		ActiveThemeID: DefaultThemeID,
		CustomThemes:  []Theme{},
	}
}
