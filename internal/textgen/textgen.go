// Package textgen fills the canonical event record from base facts and
// vision-classification metadata via a large-language-model call, with a
// provider fallback chain and strict output validation.
package textgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// Provider is one interchangeable text-generation backend. The generator
// walks an ordered list of providers until one returns output that passes
// validation.
type Provider interface {
	Name() string
	// GenerateEvent runs the model and returns its raw output, which should
	// be a JSON object matching the event field set.
	GenerateEvent(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error)
}

var systemPrompt = strings.TrimSpace(dedent.Dedent(`
	You are a senior technical copywriter and SEO specialist for We Are Vision, a high-end BTL marketing agency.

	Tone: technical, direct, sophisticated, minimalist. Never use emojis in titles, descriptions, summaries or hooks; in the Instagram body at most 3-5 strategic emojis are allowed. Language: neutral professional Spanish (Chile).

	Field rules:
	- brand: official brand name only, no descriptors. Collaborations as "Brand X x Brand Y".
	- title: descriptive, journalistic, max 60 characters.
	- slug: SEO slug in the format year-brand-event-name, lowercase, no accents, spaces replaced by hyphens. Example: 2023-adidas-marathon-santiago.
	- summary: executive summary usable as a Google meta description, max 160 characters.
	- description: 2-3 paragraph technical narrative (context, execution, impact), max 800 characters. No cheap sales language.
	- highlights: 3-5 concrete bullet points with metrics or technologies used.
	- keywords: 5-10 SEO keywords covering brand, event type, industry, technology and location.
	- hashtags: 5-15 hashtags mixing high-volume, niche and branded tags.
	- instagram_hook: scroll-stopping first line, 80-100 characters, strictly no emojis.
	- instagram_body: immersive storytelling caption with line breaks every two sentences, no hashtags.
	- linkedin_post: B2B thought-leadership case study, 1000-1300 characters.
	- category: exactly one of festivales-y-musica, eventos-corporativos, activaciones-de-marca, instalaciones-interactivas, retail-experience, arte-y-cultura, tech-y-innovacion.

	Respond ONLY with a single JSON object containing every field listed in the user message. Every field must be present; use an empty string or empty array when you have nothing to say. No markdown, no commentary.
`))

// buildUserPrompt embeds the merged event facts, the visual classification
// and the exact target field list into the generation request.
func buildUserPrompt(facts wav.BaseFacts, cls *wav.Classification) (string, error) {
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling base facts: %w", err)
	}
	clsJSON, err := json.MarshalIndent(cls, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling classification: %w", err)
	}

	var fieldList strings.Builder
	for _, f := range wav.EventFields {
		fieldList.WriteString("- ")
		fieldList.WriteString(f.Name)
		fieldList.WriteString(": ")
		fieldList.WriteString(describeField(f))
		fieldList.WriteString("\n")
	}

	return fmt.Sprintf(
		"Generate every field of the event record below.\n\nTarget fields:\n%s\nEvent base facts (JSON):\n%s\n\nVisual classification of the event imagery (JSON):\n%s\n",
		fieldList.String(), factsJSON, clsJSON,
	), nil
}

// describeField renders a field's type and constraints for the prompt.
func describeField(f wav.Field) string {
	var desc string
	switch f.Kind {
	case wav.KindStringList:
		desc = "array of strings"
		if f.MinItems > 0 || f.MaxItems > 0 {
			desc += fmt.Sprintf(", %d-%d items", f.MinItems, f.MaxItems)
		}
		if f.ItemMaxLen > 0 {
			desc += fmt.Sprintf(", max %d chars each", f.ItemMaxLen)
		}
	case wav.KindInt:
		desc = "integer"
	case wav.KindBool:
		desc = "boolean"
	default:
		desc = "string"
		if f.MaxLen > 0 {
			desc += fmt.Sprintf(", max %d chars", f.MaxLen)
		}
	}
	if f.Required {
		desc += ", required"
	}
	return desc
}
