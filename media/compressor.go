// Package media normalizes user supplied images into bounded JPEG payloads.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"public-feed/domain"
	"public-feed/domain/mimetypes"
	"public-feed/errors"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxEncodedBytes = 2 * 1024 * 1024
	DefaultMaxPixels       = 40_000_000
)

// Step is one point of the quality ladder.
type Step struct {
	MaxWidth int
	Quality  int
}

// DefaultLadder first tries 800px at quality 70, then 600px at quality 50.
var DefaultLadder = []Step{{MaxWidth: 800, Quality: 70}, {MaxWidth: 600, Quality: 50}}

type Constraints struct {
	MaxEncodedBytes int
	// MaxRawBytes is checked before any decoding. Zero means twice MaxEncodedBytes.
	MaxRawBytes int
	// MaxPixels bounds the decoded size. Zero means DefaultMaxPixels.
	MaxPixels int
	Ladder    []Step
}

func DefaultConstraints(maxEncodedBytes int) Constraints {
	return Constraints{MaxEncodedBytes: maxEncodedBytes, Ladder: DefaultLadder}
}

func (c Constraints) rawCeiling() int {
	if c.MaxRawBytes > 0 {
		return c.MaxRawBytes
	}
	return 2 * c.MaxEncodedBytes
}

func (c Constraints) pixelCeiling() int {
	if c.MaxPixels > 0 {
		return c.MaxPixels
	}
	return DefaultMaxPixels
}

func (c Constraints) validate() error {
	if c.MaxEncodedBytes <= 0 {
		return fmt.Errorf("max encoded bytes must be positive, got %d", c.MaxEncodedBytes)
	}
	if len(c.Ladder) == 0 {
		return fmt.Errorf("quality ladder is empty")
	}
	for i, step := range c.Ladder {
		if step.MaxWidth <= 0 || step.Quality < 1 || step.Quality > 100 {
			return fmt.Errorf("invalid ladder step %d: %+v", i, step)
		}
	}
	return nil
}

// Encoded is a compressed image ready to be uploaded.
type Encoded struct {
	Data         []byte
	ContentType  string
	Width        int
	Height       int
	OriginalSize int64
}

// Compressor holds no mutable state and can be shared between goroutines.
type Compressor struct {
	constraints Constraints
}

func NewCompressor(constraints Constraints) (Compressor, error) {
	if err := constraints.validate(); err != nil {
		return Compressor{}, err
	}
	return Compressor{constraints: constraints}, nil
}

func (c Compressor) Constraints() Constraints { return c.constraints }

func (c Compressor) Compress(ctx context.Context, raw domain.RawImage) (Encoded, error) {
	return Compress(ctx, raw, c.constraints)
}

// Compress decodes raw, scales it down to the ladder widths and re-encodes it as JPEG
// until the result fits MaxEncodedBytes. The input is never modified.
func Compress(ctx context.Context, raw domain.RawImage, constraints Constraints) (Encoded, error) {
	declared, ok := mimetypes.ParseImage(raw.ContentType)
	if !ok {
		return Encoded{}, fmt.Errorf("%w: %q", errors.ErrUnsupportedMediaType, raw.ContentType)
	}
	if len(raw.Data) > constraints.rawCeiling() {
		return Encoded{}, fmt.Errorf("%w: %d bytes, limit is %d",
			errors.ErrMediaTooLarge, len(raw.Data), constraints.rawCeiling())
	}
	if sniffed, ok := mimetypes.Matches(raw.Data, declared); !ok {
		return Encoded{}, fmt.Errorf("%w: declared %s but content is %s",
			errors.ErrUnsupportedMediaType, declared, sniffed)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw.Data))
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: %w", errors.ErrUnsupportedMediaType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > constraints.pixelCeiling() {
		return Encoded{}, fmt.Errorf("%w: %dx%d pixels", errors.ErrMediaTooLarge, cfg.Width, cfg.Height)
	}
	if err = ctx.Err(); err != nil {
		return Encoded{}, err
	}

	src, _, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: %w", errors.ErrUnsupportedMediaType, err)
	}

	srcWidth := src.Bounds().Dx()
	// An already compressed JPEG that fits may come out bigger when re-encoded,
	// in that case the original scan is kept without its metadata segments.
	var original []byte
	keepOriginal := declared == mimetypes.ImageJPEG &&
		srcWidth <= constraints.Ladder[0].MaxWidth &&
		len(raw.Data) <= constraints.MaxEncodedBytes
	if keepOriginal {
		original, keepOriginal = stripMetadata(raw.Data)
	}

	width := srcWidth
	for i, step := range constraints.Ladder {
		if err = ctx.Err(); err != nil {
			return Encoded{}, err
		}
		width = min(width, step.MaxWidth)
		scaled := scale(src, width)

		var buf bytes.Buffer
		if err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: step.Quality}); err != nil {
			return Encoded{}, fmt.Errorf("encoding step %d: %w", i, err)
		}

		if keepOriginal && buf.Len() >= len(original) {
			return Encoded{
				Data:         original,
				ContentType:  string(mimetypes.ImageJPEG),
				Width:        srcWidth,
				Height:       src.Bounds().Dy(),
				OriginalSize: int64(len(raw.Data)),
			}, nil
		}
		if buf.Len() <= constraints.MaxEncodedBytes {
			bounds := scaled.Bounds()
			return Encoded{
				Data:         buf.Bytes(),
				ContentType:  string(mimetypes.ImageJPEG),
				Width:        bounds.Dx(),
				Height:       bounds.Dy(),
				OriginalSize: int64(len(raw.Data)),
			}, nil
		}
	}
	return Encoded{}, fmt.Errorf("%w: still above %d bytes at %dpx",
		errors.ErrCompressionInsufficient, constraints.MaxEncodedBytes, width)
}

// scale draws src on an opaque white canvas, width pixels wide.
// Height keeps the aspect ratio, rounded down, never below one pixel.
func scale(src image.Image, width int) *image.RGBA {
	bounds := src.Bounds()
	height := bounds.Dy()
	if width != bounds.Dx() {
		height = max(1, bounds.Dy()*width/bounds.Dx())
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if width == bounds.Dx() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
