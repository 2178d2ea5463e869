package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/register-extractor/internal/common"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestFromReader(t *testing.T) {
	sub, err := FromReader("page1.PNG", strings.NewReader("abc"), 0)
	require.NoError(t, err)
	assert.Equal(t, "page1.PNG", sub.Name)
	assert.Equal(t, []byte("abc"), sub.Data)
	assert.Equal(t, xxhash.Sum64String("abc"), sub.Digest)
	assert.NotEmpty(t, sub.DigestHex())

	_, err = FromReader("notes.txt", strings.NewReader("abc"), 0)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = FromReader("big.jpg", strings.NewReader("abcdef"), 5)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = FromReader("exact.jpg", strings.NewReader("abcde"), 5)
	assert.NoError(t, err)

	_, err = FromReader("empty.jpg", strings.NewReader(""), 0)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = FromReader("", strings.NewReader("abc"), 0)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestDirectory_SortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.jpg"), []byte("b"))
	writeFile(t, filepath.Join(root, "a.png"), []byte("a"))
	writeFile(t, filepath.Join(root, "readme.md"), []byte("x"))
	writeFile(t, filepath.Join(root, ".hidden", "c.jpg"), []byte("c"))
	writeFile(t, filepath.Join(root, "sub", "d.webp"), []byte("a"))

	subs, results, stats, err := Directory(root, true, 0)
	require.NoError(t, err)

	names := make([]string, 0, len(subs))
	for _, s := range subs {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a.png", "b.jpg", "d.webp"}, names)
	assert.Len(t, results, 3)
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Duplicates)
	assert.EqualValues(t, 0, stats.Failed)

	subs, _, _, err = Directory(root, false, 0)
	require.NoError(t, err)
	assert.Len(t, subs, 4)
}

func TestDirectory_BadRoot(t *testing.T) {
	_, _, _, err := Directory("", true, 0)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, _, _, err = Directory(filepath.Join(t.TempDir(), "missing"), true, 0)
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "x.jpg")
	writeFile(t, f, []byte("x"))
	_, _, _, err = Directory(f, true, 0)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestDirectory_OversizedFileIsIsolated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "big.jpg"), []byte("0123456789"))
	writeFile(t, filepath.Join(root, "small.jpg"), []byte("01"))

	subs, results, stats, err := Directory(root, true, 4)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "small.jpg", subs[0].Name)
	assert.EqualValues(t, 1, stats.Failed)
	assert.NotEmpty(t, results[0].Err)
}

func TestPrepare_DownsizesAndEncodesJPEG(t *testing.T) {
	sub := NewSubmission("wide.png", pngBytes(t, 400, 100))

	img, err := Prepare(sub, PrepareOptions{MaxDimension: 200, JPEGQuality: 80})
	require.NoError(t, err)
	assert.Equal(t, "wide.png", img.Name)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	decoded, err := imaging.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestPrepare_KeepsSmallImages(t *testing.T) {
	img, err := Prepare(NewSubmission("s.png", pngBytes(t, 40, 30)), PrepareOptions{MaxDimension: 200})
	require.NoError(t, err)
	decoded, err := imaging.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 40, decoded.Bounds().Dx())
	assert.Equal(t, 30, decoded.Bounds().Dy())
}

func TestPrepare_InvalidImage(t *testing.T) {
	_, err := Prepare(NewSubmission("bad.jpg", []byte("definitely not an image")), PrepareOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidImage))
	assert.Contains(t, err.Error(), "bad.jpg")
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.jpg"), []byte("x"))
	writeFile(t, filepath.Join(root, "skip.txt"), []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}

	assert.Equal(t, filepath.Join(root, "existing.jpg"), next())

	writeFile(t, filepath.Join(root, "new.png"), []byte("y"))
	assert.Equal(t, filepath.Join(root, "new.png"), next())

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
