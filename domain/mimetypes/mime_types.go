package mimetypes

import (
	"mime"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWebP MIME = "image/webp"
)

// AcceptedImages are the only types a submitter may attach.
var AcceptedImages = []MIME{ImageJPEG, ImagePNG, ImageGIF, ImageWebP}

// Matches sniffs data and reports whether it agrees with the declared type.
// The sniffed type is returned either way.
func Matches(data []byte, declared MIME) (MIME, bool) {
	sniffed := Sniff(data)
	return sniffed, sniffed == declared
}

// ParseImage normalizes a declared content type and reports whether it is accepted.
// Parameters (e.g. "; charset=...") are ignored, "image/jpg" is tolerated.
func ParseImage(declared string) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return Unknown, false
	}
	if mt == "image/jpg" || mt == "image/pjpeg" {
		mt = string(ImageJPEG)
	}
	candidate := MIME(mt)
	return candidate, lo.Contains(AcceptedImages, candidate)
}

// Sniff detects the content type from the payload itself.
func Sniff(data []byte) MIME {
	detected := mimetype.Detect(data)
	for _, accepted := range AcceptedImages {
		if detected.Is(string(accepted)) {
			return accepted
		}
	}
	return MIME(detected.String())
}
