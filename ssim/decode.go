package ssim

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
)

// DecodeBytes decodes PNG or JPEG bytes into a 4-channel RGBA buffer
// suitable for Compare.
func DecodeBytes(data []byte) (Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("ssim: decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := Image{
		Data:     make([]uint8, w*h*4),
		Width:    w,
		Height:   h,
		Channels: 4,
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := src.At(x, y).RGBA()
			out.Data[i] = uint8(r >> 8)
			out.Data[i+1] = uint8(g >> 8)
			out.Data[i+2] = uint8(b >> 8)
			out.Data[i+3] = uint8(a >> 8)
			i += 4
		}
	}
	return out, nil
}
