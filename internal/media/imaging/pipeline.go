package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"ataryouth/internal/storage"
)

const (
	PrimaryMaxSide   = 800
	PrimaryQuality   = 80
	ThumbnailSide    = 150
	ThumbnailQuality = 75

	// maxPixels bounds decode memory for hostile headers.
	maxPixels = 40_000_000

	contentType = "image/webp"
)

var ErrProcessing = errors.New("failed to process image")

// Encoder writes img in the output format at the given lossy quality.
type Encoder func(w io.Writer, img image.Image, quality float32) error

func EncodeWebP(w io.Writer, img image.Image, quality float32) error {
	return webp.Encode(w, img, &webp.Options{Quality: quality})
}

type Result struct {
	PrimaryPath   string
	ThumbnailPath string
	PrimaryURL    string
	ThumbnailURL  string
}

type Pipeline struct {
	store  storage.PhotoStore
	encode Encoder
	now    func() time.Time
	log    zerolog.Logger
}

func NewPipeline(store storage.PhotoStore, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		encode: EncodeWebP,
		now:    time.Now,
		log:    log,
	}
}

// Optimize turns the raw upload into a primary image and a thumbnail. The
// raw file is removed whether or not processing succeeds. On error nothing
// new is left in the store.
func (p *Pipeline) Optimize(ctx context.Context, rawPath, ownerID string) (Result, error) {
	defer func() {
		if err := os.Remove(rawPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log.Warn().Err(err).Str("path", rawPath).Msg("remove raw upload failed")
		}
	}()

	src, err := decodeFile(rawPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	name := fmt.Sprintf("profile_%s_%d.webp", ownerID, p.now().UnixMilli())
	res := Result{
		PrimaryPath:   "/profiles/" + name,
		ThumbnailPath: "/thumbnails/thumb_" + name,
	}

	primary, err := p.render(Fit(src, PrimaryMaxSide), PrimaryQuality)
	if err != nil {
		return Result{}, err
	}
	thumb, err := p.render(CoverSquare(src, ThumbnailSide), ThumbnailQuality)
	if err != nil {
		return Result{}, err
	}

	if err := p.store.Put(ctx, res.PrimaryPath, bytes.NewReader(primary), int64(len(primary)), contentType); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}
	if err := p.store.Put(ctx, res.ThumbnailPath, bytes.NewReader(thumb), int64(len(thumb)), contentType); err != nil {
		p.remove(ctx, res.PrimaryPath)
		return Result{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	res.PrimaryURL = p.store.URL(res.PrimaryPath)
	res.ThumbnailURL = p.store.URL(res.ThumbnailPath)
	return res, nil
}

func (p *Pipeline) render(img image.Image, quality float32) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.encode(&buf, img, quality); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrProcessing, err)
	}
	return buf.Bytes(), nil
}

// Cleanup deletes a superseded primary image and its thumbnail. Failures are
// logged only.
func (p *Pipeline) Cleanup(ctx context.Context, oldPath string) {
	if oldPath == "" || IsExternal(oldPath) {
		return
	}
	p.remove(ctx, oldPath)
	if thumb, ok := ThumbnailFor(oldPath); ok {
		p.remove(ctx, thumb)
	}
}

func (p *Pipeline) remove(ctx context.Context, relPath string) {
	if err := p.store.Delete(ctx, relPath); err != nil {
		p.log.Warn().Err(err).Str("path", relPath).Msg("photo cleanup failed")
	}
}

// IsExternal reports whether a stored photo path is a remote URL rather than
// a file this service owns.
func IsExternal(photoPath string) bool {
	return strings.HasPrefix(photoPath, "http")
}

// ThumbnailFor derives the thumbnail path of a stored primary image.
func ThumbnailFor(primaryPath string) (string, bool) {
	if !strings.Contains(primaryPath, "profiles/") {
		return "", false
	}
	return strings.Replace(primaryPath, "profiles/", "thumbnails/thumb_", 1), true
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("unsupported dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// FitSize scales w×h down to fit inside maxSide×maxSide keeping the aspect
// ratio. Images already inside the box are returned unchanged.
func FitSize(w, h, maxSide int) (int, int) {
	if w <= maxSide && h <= maxSide {
		return w, h
	}
	if w >= h {
		nh := (h*maxSide + w/2) / w
		return maxSide, max(nh, 1)
	}
	nw := (w*maxSide + h/2) / h
	return max(nw, 1), maxSide
}

func Fit(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// CoverSquare crops the centred square of src and scales it to side×side.
func CoverSquare(src image.Image, side int) image.Image {
	b := src.Bounds()
	edge := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-edge)/2
	y0 := b.Min.Y + (b.Dy()-edge)/2
	crop := image.Rect(x0, y0, x0+edge, y0+edge)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}
