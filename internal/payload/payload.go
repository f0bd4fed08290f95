// Package payload assembles the final upload payload from a generated event
// record and its resolved media bundle.
package payload

import (
	"encoding/json"

	"github.com/wearevision/wav-btl-ingest/internal/media"
	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// Payload is the upsert body for the events table. Cover and logo are
// pointers without omitempty so absent media serializes as an explicit null
// and the storage schema stays stable.
type Payload struct {
	Slug              string          `json:"slug"`
	Brand             string          `json:"brand"`
	Title             string          `json:"title"`
	Year              int             `json:"year"`
	Category          string          `json:"category"`
	Summary           string          `json:"summary"`
	Description       string          `json:"description"`
	Highlights        []string        `json:"highlights"`
	Keywords          []string        `json:"keywords"`
	Hashtags          []string        `json:"hashtags"`
	InstagramHook     string          `json:"instagram_hook"`
	InstagramBody     string          `json:"instagram_body"`
	InstagramClosing  string          `json:"instagram_closing"`
	InstagramHashtags string          `json:"instagram_hashtags"`
	AltInstagram      string          `json:"alt_instagram"`
	LinkedinPost      string          `json:"linkedin_post"`
	LinkedinArticle   string          `json:"linkedin_article"`
	NeedsReview       bool            `json:"needs_review"`
	CoverURL          *string         `json:"cover_url"`
	LogoURL           *string         `json:"logo_url"`
	GalleryURLs       []string        `json:"gallery_urls"`
	Metadata          json.RawMessage `json:"metadata"`
}

// Build merges a generated event with its media bundle into the upsert
// payload. Pure and deterministic: same inputs yield a byte-identical
// payload. Fails with a consistency error when the event slug is empty or
// not URL-safe; that surfaces a data problem before any network cost is
// spent.
func Build(event *wav.Event, bundle media.Bundle) (*Payload, error) {
	if event == nil {
		return nil, &wav.ConsistencyError{Msg: "event is nil"}
	}
	if event.Slug == "" {
		return nil, &wav.ConsistencyError{Msg: "event slug is empty"}
	}
	if !wav.URLSafeSlug(event.Slug) {
		return nil, &wav.ConsistencyError{Msg: "event slug is not URL-safe: " + event.Slug}
	}

	p := &Payload{
		Slug:              event.Slug,
		Brand:             event.Brand,
		Title:             event.Title,
		Year:              event.Year,
		Category:          event.Category,
		Summary:           event.Summary,
		Description:       event.Description,
		Highlights:        emptyIfNil(event.Highlights),
		Keywords:          emptyIfNil(event.Keywords),
		Hashtags:          emptyIfNil(event.Hashtags),
		InstagramHook:     event.InstagramHook,
		InstagramBody:     event.InstagramBody,
		InstagramClosing:  event.InstagramClosing,
		InstagramHashtags: event.InstagramHashtags,
		AltInstagram:      event.AltInstagram,
		LinkedinPost:      event.LinkedinPost,
		LinkedinArticle:   event.LinkedinArticle,
		NeedsReview:       event.NeedsReview,
		GalleryURLs:       emptyIfNil(bundle.Gallery),
	}

	if bundle.Cover != "" {
		cover := bundle.Cover
		p.CoverURL = &cover
	}
	if bundle.Logo != "" {
		logo := bundle.Logo
		p.LogoURL = &logo
	}

	// The raw model output rides along as opaque metadata for auditing.
	if len(event.RawModelOutput) > 0 {
		p.Metadata = event.RawModelOutput
	} else {
		p.Metadata = json.RawMessage("null")
	}

	return p, nil
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
