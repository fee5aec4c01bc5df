package video

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
)

// GIFWriter accumulates frames and encodes an animated GIF on Close.
// Frames are quantised to the Plan 9 palette with Floyd-Steinberg
// dithering.
type GIFWriter struct {
	file     *os.File
	anim     gif.GIF
	delay    int
	maxWidth int
}

// NewGIFWriter creates (or truncates) path. A maxWidth above zero scales
// wider frames down keeping the aspect ratio.
func NewGIFWriter(path string, fps float64, maxWidth int) (*GIFWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview %s: %w", path, err)
	}
	return &GIFWriter{
		file:     f,
		delay:    FrameDelay(fps),
		maxWidth: maxWidth,
	}, nil
}

// FrameDelay converts a frame rate to a GIF delay in hundredths of a second.
func FrameDelay(fps float64) int {
	if fps <= 0 {
		return 10
	}
	d := int(math.Round(100 / fps))
	if d < 1 {
		d = 1
	}
	return d
}

func (w *GIFWriter) WriteFrame(img image.Image) error {
	src := img
	sb := img.Bounds()
	if w.maxWidth > 0 && sb.Dx() > w.maxWidth {
		h := sb.Dy() * w.maxWidth / sb.Dx()
		if h < 1 {
			h = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, w.maxWidth, h))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Rect, img, sb, xdraw.Src, nil)
		src = scaled
	}

	bounds := src.Bounds()
	frame := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), palette.Plan9)
	xdraw.FloydSteinberg.Draw(frame, frame.Rect, src, bounds.Min)

	w.anim.Image = append(w.anim.Image, frame)
	w.anim.Delay = append(w.anim.Delay, w.delay)
	return nil
}

func (w *GIFWriter) Close() error {
	defer w.file.Close()

	if len(w.anim.Image) == 0 {
		os.Remove(w.file.Name())
		return nil
	}

	w.anim.LoopCount = 0
	if err := gif.EncodeAll(w.file, &w.anim); err != nil {
		return fmt.Errorf("failed to encode preview %s: %w", w.file.Name(), err)
	}
	return w.file.Close()
}
