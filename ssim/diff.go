package ssim

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// CompareWithDiff runs Compare and additionally renders a visual diff:
// a grayscale rendition of b with each window tinted red in proportion
// to its dissimilarity. Returns a nil image when the dimensions differ.
func CompareWithDiff(a, b Image, opts *Options) (Result, *image.RGBA) {
	var windows []windowScore
	res, ok := compare(a, b, opts, &windows)
	if !ok {
		return res, nil
	}

	luma := lumaPlane(b, true)
	diff := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))

	for _, w := range windows {
		heat := 1 - w.ssim
		if heat < 0 {
			heat = 0
		}
		if heat > 1 {
			heat = 1
		}
		for y := w.y; y < w.y+w.h; y++ {
			for x := w.x; x < w.x+w.w; x++ {
				g := luma[y*b.Width+x]
				if g > 255 {
					g = 255
				}
				diff.SetRGBA(x, y, color.RGBA{
					R: uint8(g + heat*(255-g)),
					G: uint8(g * (1 - heat)),
					B: uint8(g * (1 - heat)),
					A: 255,
				})
			}
		}
	}
	return res, diff
}

// EncodePNG serialises a diff image produced by CompareWithDiff.
func EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
