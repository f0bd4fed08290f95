package textgen

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

const openaiModel = "gpt-4o"

// GPT-4o pricing (per million tokens)
const (
	openaiInputPricePerMillion  = 2.50
	openaiOutputPricePerMillion = 10.00
)

var errEmptyCompletion = errors.New("empty completion from model")

// OpenAIProvider generates event records using OpenAI's chat completions API.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates an OpenAI-backed text provider. An empty apiKey
// falls back to the OPENAI_API_KEY environment variable.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	if apiKey == "" {
		return &OpenAIProvider{client: openai.NewClient()}
	}
	return &OpenAIProvider{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// Name implements the Provider interface.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// GenerateEvent implements the Provider interface using OpenAI.
func (o *OpenAIProvider) GenerateEvent(ctx context.Context, systemPrompt, userPrompt string) (json.RawMessage, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openaiModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return nil, &wav.UpstreamError{Service: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &wav.UpstreamError{Service: "openai", Err: errEmptyCompletion}
	}

	in := resp.Usage.PromptTokens
	out := resp.Usage.CompletionTokens
	cost := float64(in)/1_000_000*openaiInputPricePerMillion + float64(out)/1_000_000*openaiOutputPricePerMillion
	log.Info().
		Str("model", openaiModel).
		Int64("inputTokens", in).
		Int64("outputTokens", out).
		Float64("costUSD", cost).
		Msg("text generation llm call")

	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
