// Package pipeline sequences one event ingest run: classification, text
// generation, payload assembly and submission, as a forward-only state
// machine with a journaled terminal state.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/wearevision/wav-btl-ingest/internal/media"
	"github.com/wearevision/wav-btl-ingest/internal/payload"
	"github.com/wearevision/wav-btl-ingest/internal/vision"
	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// State is one step of the run state machine. No state is re-entered after
// success; Failed is terminal and reachable from any step.
type State string

const (
	StateStart           State = "start"
	StateClassifying     State = "classifying"
	StateGenerating      State = "generating"
	StateBuildingPayload State = "building_payload"
	StateSubmitting      State = "submitting"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// maxClassifyImages caps how many images a run sends to classification.
const maxClassifyImages = 10

// Generator produces the canonical event record from base facts and
// classification metadata.
type Generator interface {
	Generate(ctx context.Context, facts wav.BaseFacts, cls *wav.Classification) (*wav.Event, error)
}

// Submitter performs the final upsert against the content store.
type Submitter interface {
	UpsertEvent(ctx context.Context, p *payload.Payload) (json.RawMessage, error)
}

// RunJournal records run state transitions. Optional; a nil journal disables
// journaling.
type RunJournal interface {
	StartRun(slug, state string) (runID string, err error)
	RecordState(runID, state, errorKind, errorMsg string) error
	SetSlug(runID, slug string) error
}

// Orchestrator wires the pipeline stages together for one run at a time.
// It owns retries across stages (the single strict re-classification) but
// never masks errors: a failing run records its state and error kind and
// exits.
type Orchestrator struct {
	classifier vision.Classifier
	generator  Generator
	resolver   media.Resolver
	submitter  Submitter
	journal    RunJournal
}

// NewOrchestrator creates an orchestrator. resolver, submitter and journal
// may be nil for dry runs and tests; a nil submitter downgrades every run to
// payload assembly only.
func NewOrchestrator(classifier vision.Classifier, generator Generator, resolver media.Resolver, submitter Submitter, journal RunJournal) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		generator:  generator,
		resolver:   resolver,
		submitter:  submitter,
		journal:    journal,
	}
}

// RunInput describes one event to ingest.
type RunInput struct {
	// SlugHint is a provisional identifier (typically the event folder name)
	// used for journaling until generation mints the final slug.
	SlugHint string
	Facts    wav.BaseFacts
	Assets   media.Assets
	// DryRun builds the payload but skips media upload and submission.
	DryRun bool
}

// RunResult carries everything a finished run produced.
type RunResult struct {
	State          State
	Classification *wav.Classification
	Event          *wav.Event
	Bundle         media.Bundle
	Payload        *payload.Payload
	Stored         json.RawMessage
}

// Run executes one ingest run to completion. The flow is strictly forward:
// images → classification → generated record → payload → upsert. On failure
// the returned result carries the state that failed and the error holds the
// originating taxonomy kind.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	result := &RunResult{State: StateStart}

	var runID string
	if o.journal != nil {
		id, err := o.journal.StartRun(in.SlugHint, string(StateStart))
		if err != nil {
			log.Warn().Err(err).Str("slugHint", in.SlugHint).Msg("failed to journal run start")
		} else {
			runID = id
		}
	}

	fail := func(state State, err error) (*RunResult, error) {
		result.State = StateFailed
		o.record(runID, StateFailed, err)
		log.Error().Err(err).Str("slugHint", in.SlugHint).Str("failedAt", string(state)).
			Str("errorKind", wav.ErrorKind(err)).Msg("run failed")
		return result, err
	}

	// Classifying
	result.State = StateClassifying
	o.record(runID, StateClassifying, nil)

	images, err := media.LoadImages(in.Assets, maxClassifyImages)
	if err != nil {
		return fail(StateClassifying, err)
	}

	cls, err := o.classify(ctx, images)
	if err != nil {
		return fail(StateClassifying, err)
	}
	result.Classification = cls

	// Generating
	result.State = StateGenerating
	o.record(runID, StateGenerating, nil)

	event, err := o.generator.Generate(ctx, in.Facts, cls)
	if err != nil {
		return fail(StateGenerating, err)
	}
	result.Event = event
	if o.journal != nil && runID != "" && event.Slug != in.SlugHint {
		if err := o.journal.SetSlug(runID, event.Slug); err != nil {
			log.Warn().Err(err).Msg("failed to update journaled slug")
		}
	}

	// BuildingPayload (media resolution happens here; the builder itself
	// stays pure)
	result.State = StateBuildingPayload
	o.record(runID, StateBuildingPayload, nil)

	if o.resolver != nil && !in.DryRun {
		bundle, err := o.resolver.Resolve(ctx, event.Slug, in.Assets)
		if err != nil {
			return fail(StateBuildingPayload, err)
		}
		result.Bundle = bundle
	}

	p, err := payload.Build(event, result.Bundle)
	if err != nil {
		return fail(StateBuildingPayload, err)
	}
	result.Payload = p

	// Submitting
	if in.DryRun || o.submitter == nil {
		result.State = StateDone
		o.record(runID, StateDone, nil)
		log.Info().Str("slug", event.Slug).Bool("dryRun", true).Msg("run complete")
		return result, nil
	}

	result.State = StateSubmitting
	o.record(runID, StateSubmitting, nil)

	if err := ctx.Err(); err != nil {
		// Cancelled between attempts: no partial record is submitted.
		return fail(StateSubmitting, err)
	}

	stored, err := o.submitter.UpsertEvent(ctx, p)
	if err != nil {
		return fail(StateSubmitting, err)
	}
	result.Stored = stored

	result.State = StateDone
	o.record(runID, StateDone, nil)
	log.Info().Str("slug", event.Slug).Bool("needsReview", event.NeedsReview).Msg("run complete")
	return result, nil
}

// classify runs the classification stage. A schema error (malformed model
// output) triggers exactly one re-invocation with an adjusted strict prompt;
// retrying the same prompt verbatim is assumed futile.
func (o *Orchestrator) classify(ctx context.Context, images [][]byte) (*wav.Classification, error) {
	cls, err := o.classifier.Classify(ctx, images, false)
	var schemaErr *wav.SchemaError
	if errors.As(err, &schemaErr) {
		log.Warn().Err(err).Msg("malformed classification output, re-invoking with strict prompt")
		return o.classifier.Classify(ctx, images, true)
	}
	return cls, err
}

func (o *Orchestrator) record(runID string, state State, cause error) {
	if o.journal == nil || runID == "" {
		return
	}
	kind, msg := "", ""
	if cause != nil {
		kind = wav.ErrorKind(cause)
		msg = cause.Error()
	}
	if err := o.journal.RecordState(runID, string(state), kind, msg); err != nil {
		log.Warn().Err(err).Str("state", string(state)).Msg("failed to journal state transition")
	}
}
