package textgen

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

const geminiTextModel = "gemini-2.0-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.50
	geminiOutputPricePerMillion = 3.00
)

// GeminiProvider generates event records using Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini-backed text provider.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, &wav.UpstreamError{Service: "gemini", Err: err}
	}
	return &GeminiProvider{client: client}, nil
}

// Name implements the Provider interface.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// GenerateEvent implements the Provider interface using Gemini.
func (g *GeminiProvider) GenerateEvent(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(userPrompt)}, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiTextModel, contents, config)
	if err != nil {
		return nil, &wav.UpstreamError{Service: "gemini", Err: err}
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, &wav.UpstreamError{Service: "gemini", Err: errEmptyCompletion}
	}

	if result.UsageMetadata != nil {
		in := int64(result.UsageMetadata.PromptTokenCount)
		out := int64(result.UsageMetadata.CandidatesTokenCount)
		cost := float64(in)/1_000_000*geminiInputPricePerMillion + float64(out)/1_000_000*geminiOutputPricePerMillion
		log.Info().
			Str("model", geminiTextModel).
			Int64("inputTokens", in).
			Int64("outputTokens", out).
			Float64("costUSD", cost).
			Msg("text generation llm call")
	}

	return json.RawMessage(result.Text()), nil
}
