package imagegen

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const DefaultQuality = 80

// ErrEmptyImage is returned for sources without any pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Source yields decoded pixels for the Normalizer.
type Source interface {
	Decode() (image.Image, error)
}

type readerSource struct {
	r io.Reader
}

// FromReader wraps an uploaded file or any other byte stream. EXIF orientation
// is applied so phone photos are upright.
func FromReader(r io.Reader) Source {
	return readerSource{r: r}
}

func (s readerSource) Decode() (image.Image, error) {
	if s.r == nil {
		return nil, ErrEmptyImage
	}
	img, err := imaging.Decode(s.r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// FromBytes wraps an in-memory buffer.
func FromBytes(raw []byte) Source {
	return readerSource{r: bytes.NewReader(raw)}
}

type dataURISource string

// FromDataURI wraps an already encoded payload, with or without prefix.
func FromDataURI(uri string) Source {
	return dataURISource(uri)
}

func (s dataURISource) Decode() (image.Image, error) {
	payload := CleanPayload(string(s))
	if payload == "" {
		return nil, ErrEmptyImage
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return FromBytes(raw).Decode()
}

type pixelSource struct {
	img image.Image
}

// FromImage wraps pixels that were already decoded, e.g. by the fetcher.
func FromImage(img image.Image) Source {
	return pixelSource{img: img}
}

func (s pixelSource) Decode() (image.Image, error) {
	if s.img == nil {
		return nil, ErrEmptyImage
	}
	return s.img, nil
}

// Normalizer re-encodes arbitrary sources into the canonical media type.
type Normalizer struct {
	quality    int
	background color.Color
}

// NewNormalizer returns a Normalizer encoding at the given JPEG quality.
// Out-of-range values fall back to DefaultQuality.
func NewNormalizer(quality int) *Normalizer {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Normalizer{quality: quality, background: color.White}
}

// Quality returns the configured quality factor.
func (n *Normalizer) Quality() int {
	return n.quality
}

// Normalize decodes src, caps both dimensions at maxDimension without
// upscaling, flattens transparency and encodes as CanonicalMediaType. It does
// not enforce a byte limit. maxDimension <= 0 disables the cap.
func (n *Normalizer) Normalize(src Source, maxDimension int) (EncodedImage, error) {
	if src == nil {
		return EncodedImage{}, ErrEmptyImage
	}
	img, err := src.Decode()
	if err != nil {
		return EncodedImage{}, err
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return EncodedImage{}, ErrEmptyImage
	}

	if w, h := TargetDimensions(bounds.Dx(), bounds.Dy(), maxDimension); w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	img = n.flatten(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return EncodedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return NewEncodedImage(buf.Bytes(), CanonicalMediaType), nil
}

func (n *Normalizer) flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bounds := img.Bounds()
	bg := imaging.New(bounds.Dx(), bounds.Dy(), n.background)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// ScaleFactor returns min(1, maxDimension / max(width, height)).
func ScaleFactor(width, height, maxDimension int) float64 {
	longest := width
	if height > longest {
		longest = height
	}
	if maxDimension <= 0 || longest <= maxDimension {
		return 1
	}
	return float64(maxDimension) / float64(longest)
}

// TargetDimensions applies ScaleFactor. The longer side lands exactly on
// maxDimension; the shorter one is rounded and never drops below one pixel.
func TargetDimensions(width, height, maxDimension int) (int, int) {
	scale := ScaleFactor(width, height, maxDimension)
	if scale >= 1 {
		return width, height
	}
	if width >= height {
		return maxDimension, clampPixel(float64(height) * scale)
	}
	return clampPixel(float64(width) * scale), maxDimension
}

func clampPixel(v float64) int {
	px := int(math.Round(v))
	if px < 1 {
		return 1
	}
	return px
}
