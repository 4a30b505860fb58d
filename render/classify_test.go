package render

import (
	"context"
	"image/color"
	"strings"
	"testing"

	"github.com/usewebget/webget/schema"
)

func classifyPipeline(ms *memStore, compare CompareFunc) *Pipeline {
	return New(Config{Store: ms, Compare: compare, Logger: quietLogger()})
}

func TestClassifyCreatesMissingBaseline(t *testing.T) {
	ms := newMemStore()
	p := classifyPipeline(ms, nil)
	img := pngBytes(t, 16, 16, color.White)

	out := p.classify(context.Background(), &schema.Asset{Output: "shots/home.png"}, img)
	assertStatus(t, out, StatusCreated)

	stored, err := ms.Get(context.Background(), "shots/home.png")
	if err != nil {
		t.Fatalf("baseline not written: %v", err)
	}
	if len(stored) != len(img) {
		t.Fatal("baseline differs from capture")
	}
	if !strings.HasPrefix(out.Path, "scratch/") {
		t.Fatalf("path = %q, want scratch key", out.Path)
	}
}

func TestClassifyNestedInputSkipsBaseline(t *testing.T) {
	ms := newMemStore()
	p := classifyPipeline(ms, nil)

	out := p.classify(context.Background(), &schema.Asset{}, pngBytes(t, 8, 8, color.White))
	assertStatus(t, out, StatusCreated)

	// Only the scratch key may exist.
	for key := range ms.m {
		if !strings.HasPrefix(key, "scratch/") {
			t.Fatalf("unexpected key %q", key)
		}
	}
}

func TestClassifyMatchedLeavesBaselineUntouched(t *testing.T) {
	ms := newMemStore()
	p := classifyPipeline(ms, fixedCompare(0.995))
	asset := &schema.Asset{Output: "shots/home.png"}
	img := pngBytes(t, 16, 16, color.White)

	assertStatus(t, p.classify(context.Background(), asset, img), StatusCreated)
	out := p.classify(context.Background(), asset, img)
	assertStatus(t, out, StatusMatched)

	if out.SSIM != 0.995 {
		t.Fatalf("ssim = %v", out.SSIM)
	}
	if ms.puts["shots/home.png"] != 1 {
		t.Fatalf("baseline written %d times, want 1", ms.puts["shots/home.png"])
	}
}

func TestClassifyUpdatedOverwritesBaseline(t *testing.T) {
	ms := newMemStore()
	p := classifyPipeline(ms, fixedCompare(0.983))
	asset := &schema.Asset{Output: "shots/home.png"}

	assertStatus(t, p.classify(context.Background(), asset, pngBytes(t, 16, 16, color.White)), StatusCreated)
	out := p.classify(context.Background(), asset, pngBytes(t, 16, 16, color.Black))
	assertStatus(t, out, StatusUpdated)

	assertContains(t, out.Error, "similarity 98%")
	if ms.puts["shots/home.png"] != 2 {
		t.Fatalf("baseline written %d times, want 2", ms.puts["shots/home.png"])
	}
}

func TestClassifyThresholdBoundary(t *testing.T) {
	// Exactly at the threshold the baseline is replaced; the match has to
	// be strictly above it.
	ms := newMemStore()
	p := classifyPipeline(ms, fixedCompare(MatchThreshold))
	asset := &schema.Asset{Output: "shots/home.png"}
	img := pngBytes(t, 16, 16, color.White)

	assertStatus(t, p.classify(context.Background(), asset, img), StatusCreated)
	assertStatus(t, p.classify(context.Background(), asset, img), StatusUpdated)
}

func TestClassifyDiffImageWritten(t *testing.T) {
	ms := newMemStore()
	p := classifyPipeline(ms, nil)
	asset := &schema.Asset{Output: "shots/home.png", Diff: true}

	assertStatus(t, p.classify(context.Background(), asset, pngBytes(t, 16, 16, color.White)), StatusCreated)
	out := p.classify(context.Background(), asset, pngBytes(t, 16, 16, color.Black))
	assertStatus(t, out, StatusUpdated)

	if _, err := ms.Get(context.Background(), "shots/home.diff.png"); err != nil {
		t.Fatalf("diff image missing: %v", err)
	}
}

func TestClassifyBadBaselineBytes(t *testing.T) {
	ms := newMemStore()
	ms.m["shots/home.png"] = []byte("not an image")
	p := classifyPipeline(ms, nil)

	out := p.classify(context.Background(), &schema.Asset{Output: "shots/home.png"}, pngBytes(t, 8, 8, color.White))
	assertStatus(t, out, StatusError)
	assertContains(t, out.Error, "decode baseline")
}

func TestDiffPath(t *testing.T) {
	cases := map[string]string{
		"shots/home.png": "shots/home.diff.png",
		"nav.jpeg":       "nav.diff.jpeg",
		"noext":          "noext.diff",
	}
	for in, want := range cases {
		if got := DiffPath(in); got != want {
			t.Errorf("DiffPath(%q) = %q, want %q", in, got, want)
		}
	}
}
