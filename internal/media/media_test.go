package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "02.jpg", "01.jpg", "10.PNG", "teaser.mp4", "logo.png", "notes.txt")

	assets, err := ScanDir(dir)
	assert.Nil(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "01.jpg"),
		filepath.Join(dir, "02.jpg"),
		filepath.Join(dir, "10.PNG"),
	}, assets.Images)
	assert.Equal(t, []string{filepath.Join(dir, "teaser.mp4")}, assets.Videos)
	assert.Equal(t, filepath.Join(dir, "logo.png"), assets.Logo)
	assert.False(t, assets.Empty())
}

func TestScanDirNested(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, filepath.Join("gallery", "01.webp"), filepath.Join("video", "clip.mov"))

	assets, err := ScanDir(dir)
	assert.Nil(t, err)
	assert.Len(t, assets.Images, 1)
	assert.Len(t, assets.Videos, 1)
}

func TestScanDirEmpty(t *testing.T) {
	assets, err := ScanDir(t.TempDir())
	assert.Nil(t, err)
	assert.True(t, assets.Empty())
}

func TestScanDirMissing(t *testing.T) {
	_, err := ScanDir(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NotNil(t, err)
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "01.jpg", "02.jpg", "03.jpg")

	assets, err := ScanDir(dir)
	assert.Nil(t, err)

	images, err := LoadImages(assets, 2)
	assert.Nil(t, err)
	assert.Len(t, images, 2)
	assert.Equal(t, []byte("01.jpg"), images[0])
	assert.Equal(t, []byte("02.jpg"), images[1])
}

func TestLoadImagesNoLimit(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "01.jpg", "02.jpg")

	assets, err := ScanDir(dir)
	assert.Nil(t, err)

	images, err := LoadImages(assets, 0)
	assert.Nil(t, err)
	assert.Len(t, images, 2)
}
