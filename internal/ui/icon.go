package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = renderIcon(22)

// renderIcon draws a filled tag shape: a square with a punched hole.
func renderIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	fill := color.NRGBA{R: 0x2e, G: 0x7d, B: 0x32, A: 0xff}
	hole := size / 4
	cx, cy := size/3, size/3

	for y := 1; y < size-1; y++ {
		for x := 1; x < size-1; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= (hole/2)*(hole/2) {
				continue
			}
			img.SetNRGBA(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
