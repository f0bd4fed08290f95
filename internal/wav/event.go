package wav

import "encoding/json"

// Category values used across the WAV catalog. The classifier and the text
// generator must both emit one of these.
const (
	CategoryFestivals    = "festivales-y-musica"
	CategoryCorporate    = "eventos-corporativos"
	CategoryActivations  = "activaciones-de-marca"
	CategoryInstallation = "instalaciones-interactivas"
	CategoryRetail       = "retail-experience"
	CategoryArtCulture   = "arte-y-cultura"
	CategoryTech         = "tech-y-innovacion"
)

// Categories lists every valid event category.
var Categories = []string{
	CategoryFestivals,
	CategoryCorporate,
	CategoryActivations,
	CategoryInstallation,
	CategoryRetail,
	CategoryArtCulture,
	CategoryTech,
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Classification is the structured metadata extracted from event imagery.
// It is produced once per classification call and never mutated.
type Classification struct {
	BrandGuess     string   `json:"brand"`
	TitleBase      string   `json:"title_base"`
	Year           int      `json:"year"`
	Category       string   `json:"category"`
	Tags           []string `json:"visual_keywords"`
	LogoDetected   bool     `json:"logo_detected"`
	DominantColors []string `json:"dominant_colors"`
	MainElements   []string `json:"main_elements"`
	Confidence     float64  `json:"confidence"`
}

// BaseFacts are caller-supplied facts about an event that seed text
// generation. Classification hints fill in whatever is missing.
type BaseFacts struct {
	Brand     string   `json:"brand,omitempty"`
	Category  string   `json:"category,omitempty"`
	Year      int      `json:"year,omitempty"`
	TitleHint string   `json:"title_hint,omitempty"`
	Keywords  []string `json:"visual_keywords,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Event is the canonical generated event record. Created by the text
// generator and never mutated after creation within a pipeline run; a failed
// validation discards and regenerates, it does not patch.
type Event struct {
	Brand             string   `json:"brand"`
	Title             string   `json:"title"`
	Slug              string   `json:"slug"`
	Year              int      `json:"year"`
	Category          string   `json:"category"`
	Summary           string   `json:"summary"`
	Description       string   `json:"description"`
	Highlights        []string `json:"highlights"`
	Keywords          []string `json:"keywords"`
	Hashtags          []string `json:"hashtags"`
	InstagramHook     string   `json:"instagram_hook"`
	InstagramBody     string   `json:"instagram_body"`
	InstagramClosing  string   `json:"instagram_closing"`
	InstagramHashtags string   `json:"instagram_hashtags"`
	AltInstagram      string   `json:"alt_instagram"`
	LinkedinPost      string   `json:"linkedin_post"`
	LinkedinArticle   string   `json:"linkedin_article"`
	AltTitle1         string   `json:"alt_title_1"`
	AltTitle2         string   `json:"alt_title_2"`
	NeedsReview       bool     `json:"needs_review"`

	// RawModelOutput is the unmodified JSON the winning provider returned.
	RawModelOutput json.RawMessage `json:"-"`
	// Provider is the name of the provider that produced the record.
	Provider string `json:"-"`
}
