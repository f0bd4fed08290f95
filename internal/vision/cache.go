package vision

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/rs/zerolog/log"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// CacheStore persists classification results keyed by image-set hash.
type CacheStore interface {
	GetClassification(hash string) (*wav.Classification, error)
	SetClassification(hash string, cls *wav.Classification) error
}

// CachedClassifier wraps a Classifier with persistent caching. Identical
// image sets skip the model call entirely.
type CachedClassifier struct {
	inner Classifier
	store CacheStore
}

// NewCachedClassifier creates a cached classifier.
func NewCachedClassifier(inner Classifier, store CacheStore) *CachedClassifier {
	return &CachedClassifier{inner: inner, store: store}
}

// hashImages creates a SHA256 hash from image data.
// Includes length prefix for each image to prevent boundary collisions.
func hashImages(images [][]byte) string {
	h := sha256.New()
	for _, img := range images {
		binary.Write(h, binary.LittleEndian, int64(len(img)))
		h.Write(img)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Classify implements the Classifier interface with caching. Strict
// re-invocations bypass the cache: they only happen after a malformed
// response, which a cache hit can never produce.
func (c *CachedClassifier) Classify(ctx context.Context, images [][]byte, strict bool) (*wav.Classification, error) {
	if len(images) == 0 || strict || c.store == nil {
		return c.inner.Classify(ctx, images, strict)
	}

	hash := hashImages(images)
	cached, err := c.store.GetClassification(hash)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check classification cache")
	} else if cached != nil {
		log.Debug().Str("hash", hash[:16]).Msg("classification cache hit")
		return cached, nil
	}

	result, err := c.inner.Classify(ctx, images, strict)
	if err != nil {
		return nil, err
	}

	if err := c.store.SetClassification(hash, result); err != nil {
		log.Warn().Err(err).Msg("failed to cache classification")
	} else {
		log.Debug().Str("hash", hash[:16]).Msg("classification cached")
	}

	return result, nil
}
