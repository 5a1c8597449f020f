package zip

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"
)

func readEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = body
	}
	return out
}

func TestArchiveAssets(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := ArchiveAssets([]Asset{
		{Filename: "a.txt", Data: []byte("alpha")},
		{Filename: "b.txt", Data: []byte("beta")},
	}, modified)
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}
	entries := readEntries(t, data)
	if string(entries["a.txt"]) != "alpha" || string(entries["b.txt"]) != "beta" {
		t.Fatalf("entries = %v", entries)
	}

	again, err := ArchiveAssets([]Asset{
		{Filename: "a.txt", Data: []byte("alpha")},
		{Filename: "b.txt", Data: []byte("beta")},
	}, modified)
	if err != nil {
		t.Fatalf("ArchiveAssets: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Fatal("identical inputs produced different archives")
	}
}

func TestArchiveAssetsRejectsBadNames(t *testing.T) {
	if _, err := ArchiveAssets([]Asset{{Data: []byte("x")}}, time.Time{}); err == nil {
		t.Fatal("expected error for empty filename")
	}
	dup := []Asset{{Filename: "x"}, {Filename: "x"}}
	if _, err := ArchiveAssets(dup, time.Time{}); err == nil {
		t.Fatal("expected error for duplicate filename")
	}
}

func TestBundle(t *testing.T) {
	manifest := Manifest{
		AttemptID:       "attempt-1",
		ProductLabel:    "Classic Denim Jacket",
		RecommendedSize: "L",
		Image:           "attempt-1.jpg",
		MediaType:       "image/jpeg",
		Bytes:           3,
		CreatedAt:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := Bundle(manifest, []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	entries := readEntries(t, data)
	if !bytes.Equal(entries["attempt-1.jpg"], []byte{0xff, 0xd8, 0xff}) {
		t.Fatalf("image entry = %v", entries["attempt-1.jpg"])
	}
	var got Manifest
	if err := json.Unmarshal(entries["manifest.json"], &got); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if got.RecommendedSize != "L" || got.AttemptID != "attempt-1" {
		t.Fatalf("manifest = %+v", got)
	}

	if _, err := Bundle(Manifest{}, nil); err == nil {
		t.Fatal("expected error without image name")
	}
}
