package model

// ThemeColors holds HSL triplets ("222 47% 6%") for each design token.
type ThemeColors struct {
	Background            string `json:"background"`
	Foreground            string `json:"foreground"`
	Card                  string `json:"card"`
	CardForeground        string `json:"cardForeground"`
	Popover               string `json:"popover"`
	PopoverForeground     string `json:"popoverForeground"`
	Primary               string `json:"primary"`
	PrimaryForeground     string `json:"primaryForeground"`
	Secondary             string `json:"secondary"`
	SecondaryForeground   string `json:"secondaryForeground"`
	Muted                 string `json:"muted"`
	MutedForeground       string `json:"mutedForeground"`
	Accent                string `json:"accent"`
	AccentForeground      string `json:"accentForeground"`
	Destructive           string `json:"destructive"`
	DestructiveForeground string `json:"destructiveForeground"`
	Border                string `json:"border"`
	Input                 string `json:"input"`
	Ring                  string `json:"ring"`
}

type Theme struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Colors      ThemeColors `json:"colors"`
	IsPreset    bool        `json:"isPreset"`
	CreatedAt   *int64      `json:"createdAt,omitempty"`
}

type ThemeConfig struct {
	ActiveThemeID string  `json:"activeThemeId"`
	CustomThemes  []Theme `json:"customThemes"`
}
