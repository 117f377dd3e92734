package mimetypes

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encoded(t *testing.T) (jpg, pngData, gifData []byte) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	var jpgBuf, pngBuf, gifBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpgBuf, img, nil))
	require.NoError(t, png.Encode(&pngBuf, img))
	require.NoError(t, gif.Encode(&gifBuf, img, nil))
	return jpgBuf.Bytes(), pngBuf.Bytes(), gifBuf.Bytes()
}

func TestMatches(t *testing.T) {
	jpg, pngData, gifData := encoded(t)
	tests := []struct {
		name     string
		data     []byte
		declared MIME
		sniffed  MIME
		want     bool
	}{
		{"PNG", pngData, ImagePNG, ImagePNG, true},
		{"JPEG", jpg, ImageJPEG, ImageJPEG, true},
		{"GIF", gifData, ImageGIF, ImageGIF, true},
		{"PNG declared as JPEG", pngData, ImageJPEG, ImagePNG, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			sniffed, ok := Matches(tt.data, tt.declared)
			req.Equal(tt.want, ok)
			req.Equal(tt.sniffed, sniffed)
		})
	}

	t.Run("Text declared as PNG", func(t *testing.T) {
		sniffed, ok := Matches([]byte("hello world"), ImagePNG)
		require.False(t, ok)
		require.NotContains(t, AcceptedImages, sniffed)
	})
}

func TestParseImage(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		declared string
		want     MIME
		ok       bool
	}{
		{"image/jpeg", ImageJPEG, true},
		{"image/jpg", ImageJPEG, true},
		{"IMAGE/PNG", ImagePNG, true},
		{"image/gif; foo=bar", ImageGIF, true},
		{"image/webp", ImageWebP, true},
		{"image/bmp", MIME("image/bmp"), false},
		{"image/svg+xml", MIME("image/svg+xml"), false},
		{"", Unknown, false},
	}
	for _, tt := range tests {
		got, ok := ParseImage(tt.declared)
		req.Equal(tt.ok, ok, tt.declared)
		req.Equal(tt.want, got, tt.declared)
	}
}

func TestSniff(t *testing.T) {
	req := require.New(t)
	jpg, pngData, gifData := encoded(t)

	req.Equal(ImageJPEG, Sniff(jpg))
	req.Equal(ImagePNG, Sniff(pngData))
	req.Equal(ImageGIF, Sniff(gifData))
	req.NotContains(AcceptedImages, Sniff([]byte("hello world")))
}
