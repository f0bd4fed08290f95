package textgen

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// Generator produces the canonical event record by walking an ordered
// provider fallback chain until one provider returns output that passes
// strict validation.
type Generator struct {
	providers           []Provider
	confidenceThreshold float64
	callTimeout         time.Duration
}

// NewGenerator creates a generator over the given providers, most preferred
// first. confidenceThreshold is the classification confidence below which the
// result is flagged for review; callTimeout applies per provider call.
func NewGenerator(providers []Provider, confidenceThreshold float64, callTimeout time.Duration) *Generator {
	return &Generator{providers: providers, confidenceThreshold: confidenceThreshold, callTimeout: callTimeout}
}

// Generate builds the prompt from base facts and classification metadata and
// attempts each provider in order. A provider that fails upstream or whose
// output fails validation is skipped in favor of the next; when all providers
// are exhausted the returned error is a *wav.GenerationError.
//
// The returned event has needs_review set when classification confidence was
// below the threshold, when validation had to fill or truncate a field, or
// when the provider used was not the first-preference one.
func (g *Generator) Generate(ctx context.Context, facts wav.BaseFacts, cls *wav.Classification) (*wav.Event, error) {
	if cls == nil {
		return nil, &wav.InputError{Msg: "classification is required"}
	}
	if len(g.providers) == 0 {
		return nil, &wav.InputError{Msg: "no text providers configured"}
	}

	merged := mergeFacts(facts, cls)
	userPrompt, err := buildUserPrompt(merged, cls)
	if err != nil {
		return nil, err
	}

	var attempts []wav.ProviderAttempt
	for i, provider := range g.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if g.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		}
		raw, err := provider.GenerateEvent(callCtx, systemPrompt, userPrompt)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("provider", provider.Name()).Msg("text provider failed")
			attempts = append(attempts, wav.ProviderAttempt{Provider: provider.Name(), Err: err})
			continue
		}

		event, err := g.validate(raw, provider.Name())
		if err != nil {
			log.Warn().Err(err).Str("provider", provider.Name()).Msg("text provider output failed validation")
			attempts = append(attempts, wav.ProviderAttempt{Provider: provider.Name(), Err: err})
			continue
		}

		if cls.Confidence < g.confidenceThreshold {
			event.NeedsReview = true
		}
		if i > 0 {
			// A fallback provider produced the record.
			event.NeedsReview = true
		}
		if event.Year == 0 && cls.Year > 0 {
			event.Year = cls.Year
		}

		log.Info().
			Str("provider", provider.Name()).
			Str("slug", event.Slug).
			Bool("needsReview", event.NeedsReview).
			Msg("event record generated")
		return event, nil
	}

	return nil, &wav.GenerationError{Attempts: attempts}
}

// validate checks raw provider output against the event field schema and
// normalizes the slug. Returns an error when a required field is missing or
// mistyped, or when no usable slug can be derived.
func (g *Generator) validate(raw json.RawMessage, providerName string) (*wav.Event, error) {
	cleaned := json.RawMessage(stripCodeFence(string(raw)))

	result, err := wav.ValidateEvent(cleaned)
	if err != nil {
		return nil, &wav.SchemaError{Service: providerName, Raw: string(raw), Err: err}
	}
	if len(result.Dropped) > 0 {
		log.Warn().Strs("fields", result.Dropped).Str("provider", providerName).Msg("dropped unknown fields from model output")
	}
	if !result.OK() {
		issues := make([]string, len(result.Errors))
		for i, issue := range result.Errors {
			issues[i] = issue.String()
		}
		return nil, &wav.SchemaError{
			Service: providerName,
			Raw:     string(raw),
			Err:     &validationError{issues: issues},
		}
	}

	event := result.Event
	event.Provider = providerName
	if result.Adjusted() {
		log.Debug().
			Strs("filled", result.Filled).
			Strs("truncated", result.Truncated).
			Str("provider", providerName).
			Msg("model output adjusted to schema limits")
	}

	if !wav.URLSafeSlug(event.Slug) {
		normalized := wav.Slugify(event.Slug)
		if normalized == "" {
			return nil, &wav.SchemaError{
				Service: providerName,
				Raw:     string(raw),
				Err:     &validationError{issues: []string{"slug: not URL-safe and not recoverable"}},
			}
		}
		log.Warn().Str("slug", event.Slug).Str("normalized", normalized).Msg("normalized non-URL-safe slug")
		event.Slug = normalized
		event.NeedsReview = true
	}

	return event, nil
}

// mergeFacts fills gaps in the caller-supplied facts with classification
// hints; explicit caller values always win.
func mergeFacts(facts wav.BaseFacts, cls *wav.Classification) wav.BaseFacts {
	if facts.Brand == "" {
		facts.Brand = cls.BrandGuess
	}
	if facts.Category == "" {
		facts.Category = cls.Category
	}
	if facts.Year == 0 {
		facts.Year = cls.Year
	}
	if facts.TitleHint == "" {
		facts.TitleHint = cls.TitleBase
	}
	if len(facts.Keywords) == 0 {
		facts.Keywords = cls.Tags
	}
	return facts
}

type validationError struct {
	issues []string
}

func (e *validationError) Error() string {
	return "validation failed: " + strings.Join(e.issues, "; ")
}

// stripCodeFence removes markdown code fences the model occasionally wraps
// around JSON output.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
