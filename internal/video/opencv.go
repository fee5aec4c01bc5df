//go:build opencv

package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"

	"gocv.io/x/gocv"
)

// fourcc for the mp4v codec used by OpenCV's mp4 container writer.
const openCVCodec = "mp4v"

func init() {
	Register("opencv", func(logger *slog.Logger, opts Options) (Backend, error) {
		return &OpenCV{logger: logger.With("component", "opencv")}, nil
	})
}

type OpenCV struct {
	logger *slog.Logger
}

func (o *OpenCV) Name() string {
	return "opencv"
}

func (o *OpenCV) capture(path string) (*gocv.VideoCapture, Info, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w %s: %v", ErrOpenVideo, path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, Info{}, fmt.Errorf("%w %s", ErrOpenVideo, path)
	}

	info := Info{
		Path:       path,
		Width:      int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        vc.Get(gocv.VideoCaptureFPS),
		FrameCount: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}
	return vc, info, nil
}

func (o *OpenCV) Probe(ctx context.Context, path string) (Info, error) {
	vc, info, err := o.capture(path)
	if err != nil {
		return Info{}, err
	}
	vc.Close()
	return info, nil
}

func (o *OpenCV) Open(ctx context.Context, path string) (Reader, error) {
	vc, info, err := o.capture(path)
	if err != nil {
		return nil, err
	}
	return &openCVReader{vc: vc, info: info, mat: gocv.NewMat()}, nil
}

type openCVReader struct {
	vc   *gocv.VideoCapture
	info Info
	mat  gocv.Mat
}

func (r *openCVReader) Info() Info {
	return r.info
}

func (r *openCVReader) Seek(frame int) error {
	if frame < 0 {
		return fmt.Errorf("invalid seek position %d", frame)
	}
	r.vc.Set(gocv.VideoCapturePosFrames, float64(frame))
	return nil
}

func (r *openCVReader) Read() (*image.RGBA, error) {
	if ok := r.vc.Read(&r.mat); !ok || r.mat.Empty() {
		return nil, io.EOF
	}
	// ToImage converts from OpenCV's BGR layout.
	img, err := r.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Rect, img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

func (r *openCVReader) Close() error {
	r.mat.Close()
	return r.vc.Close()
}

func (o *OpenCV) CreateClip(ctx context.Context, path string, info Info) (FrameWriter, error) {
	vw, err := gocv.VideoWriterFile(path, openCVCodec, info.FPS, info.Width, info.Height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create clip %s: %w", path, err)
	}
	return &openCVWriter{vw: vw}, nil
}

type openCVWriter struct {
	vw *gocv.VideoWriter
}

func (w *openCVWriter) WriteFrame(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()
	return w.vw.Write(mat)
}

func (w *openCVWriter) Close() error {
	return w.vw.Close()
}
