package vision

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

const geminiModel = "gemini-2.0-flash"

// maxImages caps how many images are sent per classification call.
const maxImages = 10

const classifyPrompt = `Analyze these images of a single BTL marketing event (festival, brand activation, corporate event, interactive installation, retail experience, art exhibition or tech showcase).

Identify the main visible brand, the staging elements (DJ booth, stage, LED walls, projection mapping, retail fixtures), the event category, the probable year, dominant colors, visible logos and key visual concepts. Do not invent information that is not visible.

Respond in JSON format with these fields:
- brand: the main brand name if identifiable (empty string if unknown)
- title_base: a short working title for the event
- year: probable year of the event as an integer (0 if unknown)
- category: exactly one of festivales-y-musica, eventos-corporativos, activaciones-de-marca, instalaciones-interactivas, retail-experience, arte-y-cultura, tech-y-innovacion
- visual_keywords: array of key visual concepts
- logo_detected: boolean, whether a brand logo is visible
- dominant_colors: array of dominant color names
- main_elements: array of staging/technical elements visible
- confidence_scores: object with float scores in [0,1] for "brand", "category" and "year"

Example response:
{"brand": "Heineken", "title_base": "Heineken Rooftop Sessions", "year": 2023, "category": "activaciones-de-marca", "visual_keywords": ["rooftop", "dj set", "led wall"], "logo_detected": true, "dominant_colors": ["green", "black"], "main_elements": ["dj booth", "led wall", "bar"], "confidence_scores": {"brand": 0.95, "category": 0.85, "year": 0.6}}

Respond ONLY with the JSON object, no markdown or other text.`

const classifyStrictSuffix = `

IMPORTANT: the previous response was not valid JSON. Output a single JSON object with EXACTLY the fields listed above and nothing else. No markdown fences, no commentary, no trailing text.`

// GeminiClassifier classifies event imagery using Google's Gemini API.
type GeminiClassifier struct {
	client      *genai.Client
	maxRetries  int
	backoff     time.Duration
	callTimeout time.Duration
}

// NewGeminiClassifier creates a Gemini-backed classifier. Transient call
// failures are retried up to maxRetries times with exponential backoff
// starting at backoff; callTimeout applies to each attempt, not the whole
// classification.
func NewGeminiClassifier(ctx context.Context, apiKey string, maxRetries int, backoff, callTimeout time.Duration) (*GeminiClassifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &wav.UpstreamError{Service: "gemini", Err: err}
	}
	return &GeminiClassifier{client: client, maxRetries: maxRetries, backoff: backoff, callTimeout: callTimeout}, nil
}

// Classify implements the Classifier interface using Gemini.
func (g *GeminiClassifier) Classify(ctx context.Context, images [][]byte, strict bool) (*wav.Classification, error) {
	if len(images) == 0 {
		return nil, &wav.InputError{Msg: "at least one image is required"}
	}
	if len(images) > maxImages {
		images = images[:maxImages]
	}

	prompt := classifyPrompt
	if strict {
		prompt += classifyStrictSuffix
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: img, MIMEType: "image/jpeg"},
		})
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	text, usage, err := g.generateWithRetry(ctx, contents, config)
	if err != nil {
		return nil, err
	}

	cls, err := parseClassification(text)
	if err != nil {
		return nil, &wav.SchemaError{Service: "gemini-vision", Raw: text, Err: err}
	}

	log.Info().
		Str("model", geminiModel).
		Int("imageCount", len(images)).
		Bool("strict", strict).
		Int32("inputTokens", usage.in).
		Int32("outputTokens", usage.out).
		Str("brand", cls.BrandGuess).
		Str("category", cls.Category).
		Float64("confidence", cls.Confidence).
		Msg("vision classification call")

	return cls, nil
}

type tokenUsage struct {
	in  int32
	out int32
}

// generateWithRetry calls Gemini, retrying transport failures with
// exponential backoff up to the configured bound.
func (g *GeminiClassifier) generateWithRetry(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (string, tokenUsage, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoff << (attempt - 1)
			log.Warn().Err(lastErr).Int("attempt", attempt).Dur("backoff", delay).Msg("retrying vision call")
			select {
			case <-ctx.Done():
				return "", tokenUsage{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if g.callTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
		}
		result, err := g.client.Models.GenerateContent(callCtx, geminiModel, contents, config)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return "", tokenUsage{}, ctx.Err()
			}
			lastErr = err
			continue
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrEmptyResponse
			continue
		}

		usage := tokenUsage{}
		if result.UsageMetadata != nil {
			usage.in = result.UsageMetadata.PromptTokenCount
			usage.out = result.UsageMetadata.CandidatesTokenCount
		}
		return result.Text(), usage, nil
	}
	return "", tokenUsage{}, &wav.UpstreamError{Service: "gemini-vision", Err: lastErr}
}

// ErrEmptyResponse is returned by the model transport when no candidates come
// back. Treated as transient.
var ErrEmptyResponse = errors.New("empty response from model")

// rawClassification mirrors the JSON shape the model is instructed to emit.
type rawClassification struct {
	Brand            string             `json:"brand"`
	TitleBase        string             `json:"title_base"`
	Year             int                `json:"year"`
	Category         string             `json:"category"`
	VisualKeywords   []string           `json:"visual_keywords"`
	LogoDetected     bool               `json:"logo_detected"`
	DominantColors   []string           `json:"dominant_colors"`
	MainElements     []string           `json:"main_elements"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

func parseClassification(text string) (*wav.Classification, error) {
	cleaned := stripCodeFence(text)

	var raw rawClassification
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, err
	}
	if len(raw.ConfidenceScores) == 0 {
		return nil, errMissingConfidence
	}
	if !wav.ValidCategory(raw.Category) {
		raw.Category = wav.CategoryActivations
	}

	// Overall confidence is the weakest of the per-aspect scores; one shaky
	// aspect is enough to warrant review downstream.
	confidence := 1.0
	for _, score := range raw.ConfidenceScores {
		if score < confidence {
			confidence = score
		}
	}
	if confidence < 0 {
		confidence = 0
	}

	return &wav.Classification{
		BrandGuess:     raw.Brand,
		TitleBase:      raw.TitleBase,
		Year:           raw.Year,
		Category:       raw.Category,
		Tags:           raw.VisualKeywords,
		LogoDetected:   raw.LogoDetected,
		DominantColors: raw.DominantColors,
		MainElements:   raw.MainElements,
		Confidence:     confidence,
	}, nil
}

var errMissingConfidence = errors.New("missing confidence_scores")

// stripCodeFence removes markdown code fences the model occasionally wraps
// around JSON output.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
