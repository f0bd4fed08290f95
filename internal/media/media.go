// Package media defines the contract with the media-processing collaborator:
// the bundle of resolved URLs the pipeline consumes, and discovery of raw
// assets in local event folders. Transcoding and image processing themselves
// happen behind the Resolver interface.
package media

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

// Bundle holds the final media handles for one event. Gallery order is
// preserved as supplied by the resolver.
type Bundle struct {
	Cover   string
	Logo    string
	Gallery []string
}

// Assets are the raw files discovered for one event, ordered by filename.
type Assets struct {
	Images []string
	Videos []string
	Logo   string
}

// Empty reports whether no usable assets were found.
func (a Assets) Empty() bool {
	return len(a.Images) == 0 && len(a.Videos) == 0
}

// Resolver turns raw assets into final URLs or handles. Implementations may
// upload to object storage, transcode, or simply map paths; the pipeline only
// consumes the resulting Bundle.
type Resolver interface {
	Resolve(ctx context.Context, slug string, assets Assets) (Bundle, error)
}

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".m4v": true, ".avi": true, ".mkv": true}
)

// ScanDir walks an event folder and collects its images and videos in sorted
// filename order. A file named logo.* is picked out as the brand logo. Fails
// with an input error when the directory cannot be read.
func ScanDir(dir string) (Assets, error) {
	var assets Assets

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		switch {
		case base == "logo" && imageExts[ext]:
			assets.Logo = path
		case imageExts[ext]:
			assets.Images = append(assets.Images, path)
		case videoExts[ext]:
			assets.Videos = append(assets.Videos, path)
		}
		return nil
	})
	if err != nil {
		return Assets{}, &wav.InputError{Msg: "scanning " + dir + ": " + err.Error()}
	}

	sort.Strings(assets.Images)
	sort.Strings(assets.Videos)
	return assets, nil
}

// LoadImages reads the image files of an asset set into memory for
// classification, capped at limit files.
func LoadImages(assets Assets, limit int) ([][]byte, error) {
	paths := assets.Images
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	images := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, &wav.InputError{Msg: "reading image " + p + ": " + err.Error()}
		}
		images = append(images, data)
	}
	return images, nil
}
