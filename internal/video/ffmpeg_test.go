package video

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"30/1", 30},
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
		{"1/2/3", 0},
	}
	for _, tt := range tests {
		if got := ParseFrameRate(tt.input); got != tt.want {
			t.Errorf("ParseFrameRate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRGBConversionRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(1, 0, color.RGBA{G: 255, A: 255})
	src.Set(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	raw := make([]byte, 3*2*3)
	rgbaToRGB24(src, raw)
	got := rgb24ToRGBA(raw, 3, 2)

	if !bytes.Equal(got.Pix, src.Pix) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", got.Pix, src.Pix)
	}
}

func TestRGBConversion_SubImage(t *testing.T) {
	full := solidFrame(4, 4, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := full.SubImage(image.Rect(1, 1, 3, 3))

	raw := make([]byte, 2*2*3)
	rgbaToRGB24(sub, raw)
	for i := 0; i < len(raw); i += 3 {
		if raw[i] != 1 || raw[i+1] != 2 || raw[i+2] != 3 {
			t.Fatalf("pixel %d = %v, want [1 2 3]", i/3, raw[i:i+3])
		}
	}
}

func TestTailWriter_KeepsOnlyTail(t *testing.T) {
	tw := &tailWriter{limit: 10}

	tw.Write([]byte("hello"))
	if tw.String() != "hello" {
		t.Errorf("after short write got %q, want %q", tw.String(), "hello")
	}

	n, err := tw.Write([]byte(" world of test data"))
	if err != nil || n != 19 {
		t.Fatalf("Write returned (%d, %v), want (19, nil)", n, err)
	}
	if got := tw.String(); got != "test data" {
		t.Errorf("after overflow got %q, want %q", got, "test data")
	}
}

func TestNewBackend_Unknown(t *testing.T) {
	_, err := NewBackend("vhs", slog.Default(), Options{})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func requireFFmpeg(t *testing.T) *FFmpeg {
	t.Helper()
	ff, err := NewFFmpeg(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}
	return ff
}

// makeTestVideo renders a lavfi test pattern with a fixed frame count.
func makeTestVideo(t *testing.T, path string, frames int) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=30",
		"-frames:v", strconv.Itoa(frames),
		"-c:v", "mpeg4", "-pix_fmt", "yuv420p", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to render test video: %v: %s", err, out)
	}
}

func TestFFmpeg_ProbeAndRead(t *testing.T) {
	ff := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "video_1.mp4")
	makeTestVideo(t, path, 12)

	ctx := context.Background()
	info, err := ff.Probe(ctx, path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if info.FrameCount != 12 || info.Width != 64 || info.Height != 48 {
		t.Errorf("unexpected info %+v", info)
	}
	if info.FPS != 30 {
		t.Errorf("expected 30 fps, got %v", info.FPS)
	}

	r, err := ff.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()

	if err := r.Seek(10); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	read := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		read++
	}
	if read != 2 {
		t.Errorf("expected 2 frames after seeking to 10, got %d", read)
	}

	if err := r.Seek(0); err != nil {
		t.Fatalf("backward Seek failed: %v", err)
	}
	if _, err := r.Read(); err != nil {
		t.Errorf("Read after backward seek failed: %v", err)
	}
}

func TestFFmpeg_ClipRoundTrip(t *testing.T) {
	ff := requireFFmpeg(t)
	dir := t.TempDir()
	ctx := context.Background()

	info := Info{Width: 32, Height: 16, FPS: 30, FrameRate: "30/1"}
	clip := filepath.Join(dir, "clip_0.mp4")

	w, err := ff.CreateClip(ctx, clip, info)
	if err != nil {
		t.Fatalf("CreateClip failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := w.WriteFrame(solidFrame(32, 16, color.Gray{Y: uint8(i * 40)})); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := FrameCount(ctx, ff, clip)
	if err != nil {
		t.Fatalf("FrameCount failed: %v", err)
	}
	if got != 5 {
		t.Errorf("expected 5 frames in clip, got %d", got)
	}
}

func TestFFmpeg_WriteFrameSizeMismatch(t *testing.T) {
	ff := requireFFmpeg(t)
	w, err := ff.CreateClip(context.Background(), filepath.Join(t.TempDir(), "c.mp4"), Info{Width: 16, Height: 16, FPS: 30})
	if err != nil {
		t.Fatalf("CreateClip failed: %v", err)
	}
	defer w.Close()

	if err := w.WriteFrame(solidFrame(8, 8, color.Black)); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestFFmpeg_ProbeMissingFileIsIOFault(t *testing.T) {
	ff := requireFFmpeg(t)
	_, err := ff.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, ErrOpenVideo) {
		t.Fatalf("expected ErrOpenVideo, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindIOFault {
		t.Errorf("expected IO fault kind, got %v", apperr.KindOf(err))
	}
}
