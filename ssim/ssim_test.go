package ssim

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"testing"
)

func grayImage(w, h int, value uint8) Image {
	img := Image{Data: make([]uint8, w*h*3), Width: w, Height: h, Channels: 3}
	for i := range img.Data {
		img.Data[i] = value
	}
	return img
}

func noiseImage(t *testing.T, w, h int, seed int64) Image {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := Image{Data: make([]uint8, w*h*3), Width: w, Height: h, Channels: 3}
	for i := range img.Data {
		img.Data[i] = uint8(rng.Intn(256))
	}
	return img
}

func TestCompareIdentity(t *testing.T) {
	img := noiseImage(t, 32, 24, 1)

	res := Compare(img, img, nil)
	if math.Abs(res.SSIM-1) > 1e-6 {
		t.Errorf("identical buffers: expected ssim 1.0, got %v", res.SSIM)
	}
	if math.Abs(res.MCS-1) > 1e-6 {
		t.Errorf("identical buffers: expected mcs 1.0, got %v", res.MCS)
	}
}

func TestCompareDimensionMismatch(t *testing.T) {
	a := grayImage(16, 16, 128)
	b := grayImage(17, 16, 128)

	res := Compare(a, b, nil)
	if res.SSIM != 0 || res.MCS != 0 {
		t.Errorf("expected {0, 0}, got %+v", res)
	}
}

func TestCompareSymmetry(t *testing.T) {
	a := noiseImage(t, 40, 40, 2)
	b := noiseImage(t, 40, 40, 3)

	ab := Compare(a, b, nil)
	ba := Compare(b, a, nil)
	if ab.SSIM != ba.SSIM {
		t.Errorf("ssim not symmetric: %v vs %v", ab.SSIM, ba.SSIM)
	}
	if ab.MCS != ba.MCS {
		t.Errorf("mcs not symmetric: %v vs %v", ab.MCS, ba.MCS)
	}
}

func TestCompareDeterministic(t *testing.T) {
	a := noiseImage(t, 33, 21, 4) // deliberately not a multiple of the window size
	b := noiseImage(t, 33, 21, 5)

	first := Compare(a, b, nil)
	second := Compare(a, b, nil)
	if first != second {
		t.Errorf("expected bit-identical results, got %+v and %+v", first, second)
	}
}

func TestCompareDivergenceLowersScore(t *testing.T) {
	a := noiseImage(t, 32, 32, 6)
	b := Image{Data: append([]uint8(nil), a.Data...), Width: 32, Height: 32, Channels: 3}
	// Invert the top-left window.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			for c := 0; c < 3; c++ {
				i := (y*32+x)*3 + c
				b.Data[i] = 255 - b.Data[i]
			}
		}
	}

	res := Compare(a, b, nil)
	if res.SSIM >= 1 {
		t.Errorf("diverging images should score below 1, got %v", res.SSIM)
	}
}

func TestCompareFlatVersusLuma(t *testing.T) {
	// A pure-red vs pure-blue pair: luma weighting must separate them
	// further than a flat sum, which sees equal totals.
	a := Image{Data: make([]uint8, 16*16*3), Width: 16, Height: 16, Channels: 3}
	b := Image{Data: make([]uint8, 16*16*3), Width: 16, Height: 16, Channels: 3}
	for i := 0; i < len(a.Data); i += 3 {
		a.Data[i] = 200   // red
		b.Data[i+2] = 200 // blue
	}

	flat := Options{Luminance: false}
	weighted := Options{Luminance: true}

	flatRes := Compare(a, b, &flat)
	lumaRes := Compare(a, b, &weighted)
	if math.Abs(flatRes.SSIM-1) > 1e-6 {
		t.Errorf("flat sum sees identical totals, expected 1.0, got %v", flatRes.SSIM)
	}
	if lumaRes.SSIM >= flatRes.SSIM {
		t.Errorf("luma weighting should lower the score: %v vs %v", lumaRes.SSIM, flatRes.SSIM)
	}
}

func TestCompareWithDiff(t *testing.T) {
	a := noiseImage(t, 24, 24, 7)
	b := noiseImage(t, 24, 24, 8)

	res, diff := CompareWithDiff(a, b, nil)
	if diff == nil {
		t.Fatal("expected a diff image")
	}
	if got := diff.Bounds(); got.Dx() != 24 || got.Dy() != 24 {
		t.Errorf("diff dimensions: got %v", got)
	}
	plain := Compare(a, b, nil)
	if res != plain {
		t.Errorf("diff variant changed the score: %+v vs %+v", res, plain)
	}

	_, diff = CompareWithDiff(a, grayImage(10, 10, 0), nil)
	if diff != nil {
		t.Error("dimension mismatch should yield no diff image")
	}
}

func TestDecodeBytes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			src.SetRGBA(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 60), B: 9, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	img, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 6 || img.Height != 4 || img.Channels != 4 {
		t.Fatalf("unexpected shape: %dx%d ch=%d", img.Width, img.Height, img.Channels)
	}
	if img.Data[0] != 0 || img.Data[4] != 40 {
		t.Errorf("unexpected red samples: %d %d", img.Data[0], img.Data[4])
	}

	if _, err := DecodeBytes([]byte("not an image")); err == nil {
		t.Error("expected decode error")
	}
}
