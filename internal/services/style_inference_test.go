package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}

func TestLoadClassifierManifest(t *testing.T) {
	dir := writeManifest(t, `{"version":"2026.02","labels":["visual","auditory","kinesthetic"],"pooling":"mean"}`)
	m, err := loadClassifierManifest(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Version != "2026.02" {
		t.Fatalf("version: want=2026.02 got=%s", m.Version)
	}
}

func TestLoadClassifierManifestMismatches(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing version", `{"labels":["visual","auditory","kinesthetic"],"pooling":"mean"}`},
		{"wrong pooling", `{"version":"1","labels":["visual","auditory","kinesthetic"],"pooling":"max"}`},
		{"missing label", `{"version":"1","labels":["visual","auditory"],"pooling":"mean"}`},
		{"foreign label", `{"version":"1","labels":["visual","auditory","tactile"],"pooling":"mean"}`},
		{"not json", `nope`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeManifest(t, tc.body)
			_, err := loadClassifierManifest(dir)
			var mismatch *ModelArtifactMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("want ModelArtifactMismatchError got %v", err)
			}
		})
	}
}

func TestLoadClassifierManifestMissingFile(t *testing.T) {
	_, err := loadClassifierManifest(t.TempDir())
	var mismatch *ModelArtifactMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("want ModelArtifactMismatchError got %v", err)
	}
}
