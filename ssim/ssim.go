// Package ssim computes the structural similarity index between two pixel
// buffers using non-overlapping square windows. The kernel is pure and
// deterministic: identical inputs always produce bit-identical scores.
package ssim

import "math"

// Luma weights for converting RGB samples to perceptual luminance.
const (
	lumaR = 0.212655
	lumaG = 0.715158
	lumaB = 0.072187
)

// Image is a flattened row-major pixel buffer with Channels samples per
// pixel.
type Image struct {
	Data     []uint8
	Width    int
	Height   int
	Channels int
}

// Options tune the comparison. The zero value selects the defaults
// documented on each field.
type Options struct {
	// WindowSize is the side length of the square sliding window.
	// Windows do not overlap; windows on the last row and column are
	// clipped to the image bounds. Default 8.
	WindowSize int

	// K1 and K2 are the standard SSIM stabilisation constants.
	// Defaults 0.01 and 0.03.
	K1 float64
	K2 float64

	// BitsPerComponent sets the dynamic range L = 2^bits - 1. Default 8.
	BitsPerComponent int

	// Luminance selects perceptual luma weighting of RGB samples. When
	// false, samples are combined as a flat unweighted sum. Default true.
	Luminance bool
}

func (o *Options) defaults() {
	if o.WindowSize <= 0 {
		o.WindowSize = 8
	}
	if o.K1 <= 0 {
		o.K1 = 0.01
	}
	if o.K2 <= 0 {
		o.K2 = 0.03
	}
	if o.BitsPerComponent <= 0 {
		o.BitsPerComponent = 8
	}
}

// DefaultOptions returns the options used when Compare receives nil.
func DefaultOptions() Options {
	o := Options{Luminance: true}
	o.defaults()
	return o
}

// Result is the aggregate similarity over all windows. SSIM is the mean
// per-window structural similarity, MCS the mean contrast-structure
// component. Both sit in [0, 1] for natural images.
type Result struct {
	SSIM float64 `json:"ssim"`
	MCS  float64 `json:"mcs"`
}

// Compare computes the windowed SSIM between two images. Images of
// differing dimensions are defined as maximally dissimilar and return
// {0, 0} rather than an error.
func Compare(a, b Image, opts *Options) Result {
	res, _ := compare(a, b, opts, nil)
	return res
}

type windowScore struct {
	x, y, w, h int
	ssim       float64
}

func compare(a, b Image, opts *Options, windows *[]windowScore) (Result, bool) {
	var o Options
	if opts != nil {
		o = *opts
	} else {
		o = DefaultOptions()
	}
	o.defaults()

	if a.Width != b.Width || a.Height != b.Height {
		return Result{}, false
	}
	if a.Width == 0 || a.Height == 0 {
		return Result{}, false
	}

	lumaA := lumaPlane(a, o.Luminance)
	lumaB := lumaPlane(b, o.Luminance)

	l := math.Pow(2, float64(o.BitsPerComponent)) - 1
	c1 := (o.K1 * l) * (o.K1 * l)
	c2 := (o.K2 * l) * (o.K2 * l)

	var sumSSIM, sumCS float64
	var count int

	ws := o.WindowSize
	for wy := 0; wy < a.Height; wy += ws {
		wh := min(ws, a.Height-wy)
		for wx := 0; wx < a.Width; wx += ws {
			ww := min(ws, a.Width-wx)

			m1, m2, v1, v2, cov := windowStats(lumaA, lumaB, a.Width, wx, wy, ww, wh)

			num := (2*m1*m2 + c1) * (2*cov + c2)
			den := (m1*m1 + m2*m2 + c1) * (v1 + v2 + c2)
			s := num / den
			cs := (2*cov + c2) / (v1 + v2 + c2)

			sumSSIM += s
			sumCS += cs
			count++

			if windows != nil {
				*windows = append(*windows, windowScore{x: wx, y: wy, w: ww, h: wh, ssim: s})
			}
		}
	}

	return Result{SSIM: sumSSIM / float64(count), MCS: sumCS / float64(count)}, true
}

// windowStats computes means, sample variances and covariance (N-1
// denominator) for the window at wx,wy in both luma planes.
func windowStats(a, b []float64, stride, wx, wy, ww, wh int) (m1, m2, v1, v2, cov float64) {
	n := float64(ww * wh)

	for y := wy; y < wy+wh; y++ {
		row := y * stride
		for x := wx; x < wx+ww; x++ {
			m1 += a[row+x]
			m2 += b[row+x]
		}
	}
	m1 /= n
	m2 /= n

	if n <= 1 {
		return m1, m2, 0, 0, 0
	}

	for y := wy; y < wy+wh; y++ {
		row := y * stride
		for x := wx; x < wx+ww; x++ {
			d1 := a[row+x] - m1
			d2 := b[row+x] - m2
			v1 += d1 * d1
			v2 += d2 * d2
			cov += d1 * d2
		}
	}
	v1 /= n - 1
	v2 /= n - 1
	cov /= n - 1
	return m1, m2, v1, v2, cov
}

// lumaPlane flattens an image into one float per pixel: weighted luma for
// RGB(A) buffers when weighted is set, otherwise an unweighted sum of up
// to the first three channels. Alpha never contributes.
func lumaPlane(img Image, weighted bool) []float64 {
	out := make([]float64, img.Width*img.Height)
	ch := img.Channels
	samples := min(ch, 3)

	for i := range out {
		base := i * ch
		if weighted && ch >= 3 {
			out[i] = lumaR*float64(img.Data[base]) +
				lumaG*float64(img.Data[base+1]) +
				lumaB*float64(img.Data[base+2])
			continue
		}
		var sum float64
		for s := 0; s < samples; s++ {
			sum += float64(img.Data[base+s])
		}
		out[i] = sum
	}
	return out
}
