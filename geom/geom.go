// Package geom resolves declarative crop and scroll specifications into
// pixel-exact rectangles and offsets. All functions are pure.
package geom

import "fmt"

// Rect is an axis-aligned rectangle in page pixel coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CropSpec describes a crop relative to a reference box. Width and Height
// are fractions of the box dimension when in (0, 1], absolute pixels when
// greater than 1 — so exactly 1 means the full dimension. X and Y are
// fractions of the remaining slack (dimension minus resolved size) when
// below 1, absolute pixel offsets from 1 upward. Padding expands the
// resolved rectangle on all four sides.
type CropSpec struct {
	X       float64
	Y       float64
	Width   float64
	Height  float64
	Padding float64
}

// DefaultCropSpec selects the full reference box with no padding.
func DefaultCropSpec() CropSpec {
	return CropSpec{X: 0, Y: 0, Width: 1, Height: 1, Padding: 0}
}

// ResolveCrop computes the final crop rectangle for spec against box.
// Sizes resolve first, then offsets against the already-resolved sizes,
// then the rect is translated into page coordinates and expanded by
// padding. The result is clamped to non-negative origin and size.
func ResolveCrop(box Rect, spec CropSpec) Rect {
	w := resolveSize(spec.Width, box.Width)
	h := resolveSize(spec.Height, box.Height)
	x := resolveOffset(spec.X, box.Width-w)
	y := resolveOffset(spec.Y, box.Height-h)

	r := Rect{
		X:      box.X + x - spec.Padding,
		Y:      box.Y + y - spec.Padding,
		Width:  w + spec.Padding*2,
		Height: h + spec.Padding*2,
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	if r.Width < 0 {
		r.Width = 0
	}
	if r.Height < 0 {
		r.Height = 0
	}
	return r
}

func resolveSize(v, dim float64) float64 {
	if v > 1 {
		return v
	}
	return v * dim
}

func resolveOffset(v, slack float64) float64 {
	if v < 1 {
		return v * slack
	}
	return v
}

// Scroll placements supported by ResolveScrollOffset.
const (
	PlacementTop    = "top"
	PlacementCenter = "center"
	PlacementBottom = "bottom"
)

// PlacementFraction maps a semantic placement name to its vertical
// fraction: top 0, center 0.5, bottom 1.
func PlacementFraction(name string) (float64, error) {
	switch name {
	case PlacementTop:
		return 0, nil
	case PlacementCenter:
		return 0.5, nil
	case PlacementBottom:
		return 1, nil
	}
	return 0, fmt.Errorf("geom: unknown placement %q", name)
}

// ResolveScrollOffset converts a vertical fraction into the pixel offset
// that places a box of boxHeight at that position inside a viewport of
// viewportHeight. A fraction of 0 pins the box to the top edge, 1 to the
// bottom. Negative slack (box taller than viewport) resolves to 0.
func ResolveScrollOffset(boxHeight, viewportHeight, fraction float64) float64 {
	slack := viewportHeight - boxHeight
	if slack < 0 {
		slack = 0
	}
	return slack * fraction
}
