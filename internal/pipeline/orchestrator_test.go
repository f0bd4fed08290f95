package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wearevision/wav-btl-ingest/internal/media"
	"github.com/wearevision/wav-btl-ingest/internal/payload"
	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

type classifyCall struct {
	cls *wav.Classification
	err error
}

type fakeClassifier struct {
	script []classifyCall
	strict []bool
}

func (f *fakeClassifier) Classify(ctx context.Context, images [][]byte, strict bool) (*wav.Classification, error) {
	f.strict = append(f.strict, strict)
	call := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return call.cls, call.err
}

type fakeGenerator struct {
	event *wav.Event
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, facts wav.BaseFacts, cls *wav.Classification) (*wav.Event, error) {
	return f.event, f.err
}

type fakeResolver struct {
	bundle media.Bundle
	err    error
	calls  int
	hook   func()
}

func (f *fakeResolver) Resolve(ctx context.Context, slug string, assets media.Assets) (media.Bundle, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.bundle, f.err
}

type fakeSubmitter struct {
	calls   int
	payload *payload.Payload
	err     error
}

func (f *fakeSubmitter) UpsertEvent(ctx context.Context, p *payload.Payload) (json.RawMessage, error) {
	f.calls++
	f.payload = p
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`[{"slug":"` + p.Slug + `"}]`), nil
}

type journalEntry struct {
	state     string
	errorKind string
}

type fakeJournal struct {
	entries []journalEntry
	slug    string
}

func (f *fakeJournal) StartRun(slug, state string) (string, error) {
	f.slug = slug
	f.entries = append(f.entries, journalEntry{state: state})
	return "run-1", nil
}

func (f *fakeJournal) RecordState(runID, state, errorKind, errorMsg string) error {
	f.entries = append(f.entries, journalEntry{state: state, errorKind: errorKind})
	return nil
}

func (f *fakeJournal) SetSlug(runID, slug string) error {
	f.slug = slug
	return nil
}

func (f *fakeJournal) states() []string {
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.state
	}
	return out
}

func testAssets(t *testing.T) media.Assets {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "01.jpg")
	if err := os.WriteFile(path, []byte("fake-jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	return media.Assets{Images: []string{path}}
}

func testEvent() *wav.Event {
	return &wav.Event{
		Brand:       "Nike",
		Title:       "Nike Air Max Experience",
		Slug:        "nike-air-max-experience",
		Year:        2024,
		Category:    wav.CategoryActivations,
		Summary:     "Activación de lanzamiento.",
		Description: "Experiencia inmersiva.",
		Highlights:  []string{"Túnel LED", "Zona de pruebas", "DJ set"},
		Keywords:    []string{"nike", "air max", "activación", "led", "santiago"},
	}
}

func TestRunHappyPath(t *testing.T) {
	classifier := &fakeClassifier{script: []classifyCall{{cls: &wav.Classification{Confidence: 0.9}}}}
	generator := &fakeGenerator{event: testEvent()}
	resolver := &fakeResolver{bundle: media.Bundle{Cover: "https://cdn/cover.webp"}}
	submitter := &fakeSubmitter{}
	journal := &fakeJournal{}

	o := NewOrchestrator(classifier, generator, resolver, submitter, journal)
	result, err := o.Run(context.Background(), RunInput{
		SlugHint: "nike-folder",
		Assets:   testAssets(t),
	})
	assert.Nil(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 1, submitter.calls)
	assert.Equal(t, "nike-air-max-experience", submitter.payload.Slug)
	assert.NotNil(t, result.Stored)

	assert.Equal(t, []string{"start", "classifying", "generating", "building_payload", "submitting", "done"}, journal.states())
	// The journaled slug follows the generated record once it is minted.
	assert.Equal(t, "nike-air-max-experience", journal.slug)
}

func TestRunStrictReclassifyOnSchemaError(t *testing.T) {
	classifier := &fakeClassifier{script: []classifyCall{
		{err: &wav.SchemaError{Service: "gemini-vision", Raw: "garbage", Err: errors.New("not json")}},
		{cls: &wav.Classification{Confidence: 0.9}},
	}}
	o := NewOrchestrator(classifier, &fakeGenerator{event: testEvent()}, nil, nil, nil)

	result, err := o.Run(context.Background(), RunInput{Assets: testAssets(t), DryRun: true})
	assert.Nil(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, []bool{false, true}, classifier.strict)
}

func TestRunStrictReclassifyOnlyOnce(t *testing.T) {
	schemaErr := &wav.SchemaError{Service: "gemini-vision", Raw: "garbage", Err: errors.New("not json")}
	classifier := &fakeClassifier{script: []classifyCall{{err: schemaErr}}}
	journal := &fakeJournal{}
	o := NewOrchestrator(classifier, &fakeGenerator{event: testEvent()}, nil, nil, journal)

	result, err := o.Run(context.Background(), RunInput{Assets: testAssets(t)})
	assert.NotNil(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, []bool{false, true}, classifier.strict)
	assert.Equal(t, "schema", journal.entries[len(journal.entries)-1].errorKind)
}

func TestRunUpstreamClassifierErrorNotRetriedStrict(t *testing.T) {
	classifier := &fakeClassifier{script: []classifyCall{
		{err: &wav.UpstreamError{Service: "gemini-vision", Err: errors.New("503")}},
	}}
	journal := &fakeJournal{}
	o := NewOrchestrator(classifier, &fakeGenerator{event: testEvent()}, nil, nil, journal)

	result, err := o.Run(context.Background(), RunInput{Assets: testAssets(t)})
	assert.NotNil(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, []bool{false}, classifier.strict)
	assert.Equal(t, "upstream", journal.entries[len(journal.entries)-1].errorKind)
}

func TestRunGeneratorFailure(t *testing.T) {
	classifier := &fakeClassifier{script: []classifyCall{{cls: &wav.Classification{Confidence: 0.9}}}}
	generator := &fakeGenerator{err: &wav.GenerationError{}}
	submitter := &fakeSubmitter{}
	journal := &fakeJournal{}
	o := NewOrchestrator(classifier, generator, nil, submitter, journal)

	result, err := o.Run(context.Background(), RunInput{Assets: testAssets(t)})
	assert.NotNil(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 0, submitter.calls)
	assert.Equal(t, "generation", journal.entries[len(journal.entries)-1].errorKind)
}

func TestRunDrySkipsResolveAndSubmit(t *testing.T) {
	classifier := &fakeClassifier{script: []classifyCall{{cls: &wav.Classification{Confidence: 0.9}}}}
	resolver := &fakeResolver{}
	submitter := &fakeSubmitter{}
	o := NewOrchestrator(classifier, &fakeGenerator{event: testEvent()}, resolver, submitter, nil)

	result, err := o.Run(context.Background(), RunInput{Assets: testAssets(t), DryRun: true})
	assert.Nil(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 0, resolver.calls)
	assert.Equal(t, 0, submitter.calls)
	assert.NotNil(t, result.Payload)
	assert.Nil(t, result.Payload.CoverURL)
}

func TestRunBadSlugFailsBeforeSubmit(t *testing.T) {
	event := testEvent()
	event.Slug = "Not A Slug"
	classifier := &fakeClassifier{script: []classifyCall{{cls: &wav.Classification{Confidence: 0.9}}}}
	submitter := &fakeSubmitter{}
	o := NewOrchestrator(classifier, &fakeGenerator{event: event}, nil, submitter, nil)

	result, err := o.Run(context.Background(), RunInput{Assets: testAssets(t)})
	assert.NotNil(t, err)
	assert.Equal(t, "consistency", wav.ErrorKind(err))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 0, submitter.calls)
}

func TestRunCancellationSkipsSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := &fakeClassifier{script: []classifyCall{{cls: &wav.Classification{Confidence: 0.9}}}}
	// Cancel mid-run, after generation but before submission.
	resolver := &fakeResolver{hook: cancel}
	submitter := &fakeSubmitter{}
	o := NewOrchestrator(classifier, &fakeGenerator{event: testEvent()}, resolver, submitter, nil)

	result, err := o.Run(ctx, RunInput{Assets: testAssets(t)})
	assert.NotNil(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 0, submitter.calls)
}

func TestRunSubmitterFailure(t *testing.T) {
	classifier := &fakeClassifier{script: []classifyCall{{cls: &wav.Classification{Confidence: 0.9}}}}
	submitter := &fakeSubmitter{err: &wav.UpstreamError{Service: "supabase", Err: errors.New("500")}}
	journal := &fakeJournal{}
	o := NewOrchestrator(classifier, &fakeGenerator{event: testEvent()}, nil, submitter, journal)

	result, err := o.Run(context.Background(), RunInput{Assets: testAssets(t)})
	assert.NotNil(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "upstream", journal.entries[len(journal.entries)-1].errorKind)
}
