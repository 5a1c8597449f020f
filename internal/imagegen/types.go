package imagegen

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// MediaType tags an encoded image payload.
type MediaType string

const (
	MediaTypeJPEG MediaType = "image/jpeg"
	MediaTypePNG  MediaType = "image/png"
)

// CanonicalMediaType is the single encoding used for every provider-bound
// payload. JPEG has no alpha channel, so transparent inputs are flattened first.
const CanonicalMediaType = MediaTypeJPEG

// ParseMediaType maps a MIME string onto the supported set.
func ParseMediaType(mime string) (MediaType, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	switch mime {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return MediaTypeJPEG, true
	case "image/png":
		return MediaTypePNG, true
	default:
		return "", false
	}
}

// EncodedImage is a base64 payload without any data URI prefix.
type EncodedImage struct {
	Data      string
	MediaType MediaType
	Size      int
}

// NewEncodedImage wraps raw bytes.
func NewEncodedImage(raw []byte, mediaType MediaType) EncodedImage {
	return EncodedImage{
		Data:      base64.StdEncoding.EncodeToString(raw),
		MediaType: mediaType,
		Size:      len(raw),
	}
}

// IsZero reports whether the image carries no payload.
func (e EncodedImage) IsZero() bool {
	return e.Data == ""
}

// Bytes decodes the payload.
func (e EncodedImage) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return raw, nil
}

// DataURI renders the image for browser consumption.
func (e EncodedImage) DataURI() string {
	return "data:" + string(e.MediaType) + ";base64," + e.Data
}

// TryOnRequest is built once per user action and never mutated.
type TryOnRequest struct {
	UserImage    EncodedImage
	ProductImage EncodedImage
	ProductLabel string
}

// TryOnResult always carries a generated image; a missing image is reported
// as a failure instead.
type TryOnResult struct {
	AttemptID       string
	Image           EncodedImage
	RecommendedSize SizeCode
}
