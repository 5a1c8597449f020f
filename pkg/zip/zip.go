package zip

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Asset is one file in an archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs assets in order. Entries carry modified as their
// timestamp so identical inputs produce identical archives.
func ArchiveAssets(assets []Asset, modified time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		if asset.Filename == "" {
			return nil, fmt.Errorf("zip: asset without filename")
		}
		if _, dup := seen[asset.Filename]; dup {
			return nil, fmt.Errorf("zip: duplicate entry %q", asset.Filename)
		}
		seen[asset.Filename] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     asset.Filename,
			Method:   zip.Deflate,
			Modified: modified,
			Comment:  asset.MIME,
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Manifest describes a try-on bundle.
type Manifest struct {
	AttemptID       string    `json:"attempt_id"`
	ProductLabel    string    `json:"product_label,omitempty"`
	RecommendedSize string    `json:"recommended_size"`
	Image           string    `json:"image"`
	MediaType       string    `json:"media_type"`
	Bytes           int       `json:"bytes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Bundle packs the generated image next to a manifest.json.
func Bundle(manifest Manifest, image []byte) ([]byte, error) {
	if manifest.Image == "" {
		return nil, fmt.Errorf("zip: manifest has no image name")
	}
	meta, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("zip: manifest: %w", err)
	}
	return ArchiveAssets([]Asset{
		{Filename: manifest.Image, MIME: manifest.MediaType, Data: image},
		{Filename: "manifest.json", MIME: "application/json", Data: meta},
	}, manifest.CreatedAt)
}
