package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"

	"ataryouth/internal/storage"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, "raw-upload")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func newTestPipeline(t *testing.T) (*Pipeline, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "uploads"), "/uploads")
	require.NoError(t, err)
	p := NewPipeline(store, zerolog.Nop())
	p.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return p, store
}

func webpSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := xwebp.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestOptimizePortraitUpload(t *testing.T) {
	p, store := newTestPipeline(t)
	raw := writePNG(t, t.TempDir(), 900, 1600)

	res, err := p.Optimize(context.Background(), raw, "u1")
	require.NoError(t, err)

	assert.Equal(t, "/profiles/profile_u1_1700000000123.webp", res.PrimaryPath)
	assert.Equal(t, "/thumbnails/thumb_profile_u1_1700000000123.webp", res.ThumbnailPath)
	assert.Equal(t, "/uploads/profiles/profile_u1_1700000000123.webp", res.PrimaryURL)
	assert.Equal(t, "/uploads/thumbnails/thumb_profile_u1_1700000000123.webp", res.ThumbnailURL)

	w, h := webpSize(t, filepath.Join(store.Root(), "profiles", "profile_u1_1700000000123.webp"))
	assert.Equal(t, 450, w)
	assert.Equal(t, 800, h)

	w, h = webpSize(t, filepath.Join(store.Root(), "thumbnails", "thumb_profile_u1_1700000000123.webp"))
	assert.Equal(t, 150, w)
	assert.Equal(t, 150, h)

	_, err = os.Stat(raw)
	assert.True(t, os.IsNotExist(err), "raw upload is removed")
}

func TestOptimizeNeverUpscales(t *testing.T) {
	p, store := newTestPipeline(t)
	raw := writePNG(t, t.TempDir(), 120, 60)

	res, err := p.Optimize(context.Background(), raw, "u2")
	require.NoError(t, err)

	w, h := webpSize(t, filepath.Join(store.Root(), filepath.FromSlash(res.PrimaryPath)))
	assert.Equal(t, 120, w)
	assert.Equal(t, 60, h)

	w, h = webpSize(t, filepath.Join(store.Root(), filepath.FromSlash(res.ThumbnailPath)))
	assert.Equal(t, 150, w)
	assert.Equal(t, 150, h)
}

func TestOptimizeCorruptInput(t *testing.T) {
	p, store := newTestPipeline(t)
	raw := filepath.Join(t.TempDir(), "raw-upload")
	require.NoError(t, os.WriteFile(raw, []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'u', 'n', 'k'}, 0o600))

	_, err := p.Optimize(context.Background(), raw, "u1")
	assert.ErrorIs(t, err, ErrProcessing)

	_, err = os.Stat(filepath.Join(store.Root(), "profiles"))
	assert.True(t, os.IsNotExist(err), "nothing written to the served directory")
	_, err = os.Stat(raw)
	assert.True(t, os.IsNotExist(err))
}

func TestOptimizeEncoderFailure(t *testing.T) {
	p, store := newTestPipeline(t)
	p.encode = func(io.Writer, image.Image, float32) error { return errors.New("encoder crashed") }
	raw := writePNG(t, t.TempDir(), 40, 40)

	_, err := p.Optimize(context.Background(), raw, "u1")
	assert.ErrorIs(t, err, ErrProcessing)

	_, err = os.Stat(filepath.Join(store.Root(), "profiles"))
	assert.True(t, os.IsNotExist(err))
}

type failingThumbStore struct {
	storage.PhotoStore
	deleted []string
}

func (s *failingThumbStore) Put(ctx context.Context, rel string, r io.Reader, size int64, ct string) error {
	if filepath.Dir(rel) == "/thumbnails" {
		return errors.New("disk full")
	}
	return s.PhotoStore.Put(ctx, rel, r, size, ct)
}

func (s *failingThumbStore) Delete(ctx context.Context, rel string) error {
	s.deleted = append(s.deleted, rel)
	return s.PhotoStore.Delete(ctx, rel)
}

func TestOptimizeRollsBackPrimaryWhenThumbnailFails(t *testing.T) {
	local, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	store := &failingThumbStore{PhotoStore: local}
	p := NewPipeline(store, zerolog.Nop())
	raw := writePNG(t, t.TempDir(), 40, 40)

	_, err = p.Optimize(context.Background(), raw, "u1")
	require.ErrorIs(t, err, ErrProcessing)
	require.Len(t, store.deleted, 1)

	_, err = os.Stat(filepath.Join(local.Root(), filepath.FromSlash(store.deleted[0])))
	assert.True(t, os.IsNotExist(err))
}

func TestCleanup(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()
	primary := "/profiles/profile_u1_1.webp"
	thumb := "/thumbnails/thumb_profile_u1_1.webp"
	require.NoError(t, store.Put(ctx, primary, bytes.NewReader([]byte("a")), 1, contentType))
	require.NoError(t, store.Put(ctx, thumb, bytes.NewReader([]byte("b")), 1, contentType))

	p.Cleanup(ctx, primary)

	for _, rel := range []string{primary, thumb} {
		_, err := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(rel)))
		assert.True(t, os.IsNotExist(err), rel)
	}

	// Already gone, external and empty paths are all no-ops.
	p.Cleanup(ctx, primary)
	p.Cleanup(ctx, "https://example.org/avatar.png")
	p.Cleanup(ctx, "")
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{900, 1600, 450, 800},
		{1600, 900, 800, 450},
		{800, 800, 800, 800},
		{4000, 4000, 800, 800},
		{300, 200, 300, 200},
		{10000, 5, 800, 1},
	}
	for _, tt := range tests {
		w, h := FitSize(tt.w, tt.h, PrimaryMaxSide)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}

func TestThumbnailFor(t *testing.T) {
	thumb, ok := ThumbnailFor("/profiles/profile_u1_1.webp")
	assert.True(t, ok)
	assert.Equal(t, "/thumbnails/thumb_profile_u1_1.webp", thumb)

	_, ok = ThumbnailFor("/avatars/a.webp")
	assert.False(t, ok)
}
