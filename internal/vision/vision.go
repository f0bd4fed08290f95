// Package vision extracts structured metadata from event imagery using an
// image-understanding model.
package vision

import (
	"context"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// Classifier can classify a set of event images into structured metadata.
type Classifier interface {
	// Classify analyzes one or more images of the same event together.
	// At least one image is required. When strict is set, the prompt is
	// adjusted to demand schema-exact output; callers use this for the one
	// permitted re-invocation after malformed model output.
	Classify(ctx context.Context, images [][]byte, strict bool) (*wav.Classification, error)
}
