package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(`{"url":"http://example.com"}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscoverFindsDescriptors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"home.png.json",
		"shots/nav.jpg.json",
		"shots/deep/hero.jpeg.json",
		"notes.json",      // no image extension
		"config.yaml",     // not a descriptor
		"home.png",        // baseline itself
		".git/x.png.json", // hidden directory
	)

	outputs, err := discover(dir, "")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(dir, "home.png"),
		filepath.Join(dir, "shots/deep/hero.jpeg"),
		filepath.Join(dir, "shots/nav.jpg"),
	}
	if len(outputs) != len(want) {
		t.Fatalf("outputs = %v, want %v", outputs, want)
	}
	for i := range want {
		if outputs[i] != want[i] {
			t.Errorf("outputs[%d] = %q, want %q", i, outputs[i], want[i])
		}
	}
}

func TestDiscoverFilter(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "home.png.json", "shots/nav.png.json")

	outputs, err := discover(dir, "nav")
	if err != nil {
		t.Fatal(err)
	}
	if len(outputs) != 1 || filepath.Base(outputs[0]) != "nav.png" {
		t.Fatalf("outputs = %v", outputs)
	}
}

func TestDiscoverEmptyDir(t *testing.T) {
	outputs, err := discover(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(outputs) != 0 {
		t.Fatalf("outputs = %v", outputs)
	}
}
