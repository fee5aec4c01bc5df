// Package video reads source videos frame by frame and writes clip files.
// Backends are selected by name; "ffmpeg" is always available and
// "opencv" is compiled in with the opencv build tag.
package video

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
)

const DefaultBackend = "ffmpeg"

var ErrOpenVideo = fmt.Errorf("could not open video file: %w", apperr.ErrIOFault)

// Info describes the first video stream of a file.
type Info struct {
	Path       string
	Width      int
	Height     int
	FPS        float64
	FrameRate  string // rational form reported by the container, e.g. "30000/1001"
	FrameCount int
	Codec      string
}

// Reader yields decoded frames in stream order. Read returns io.EOF once
// the stream is exhausted.
type Reader interface {
	Info() Info
	Seek(frame int) error
	Read() (*image.RGBA, error)
	Close() error
}

// FrameWriter accepts frames in presentation order.
type FrameWriter interface {
	WriteFrame(img image.Image) error
	Close() error
}

type Backend interface {
	Name() string
	Probe(ctx context.Context, path string) (Info, error)
	Open(ctx context.Context, path string) (Reader, error)
	// CreateClip truncates any existing file at path.
	CreateClip(ctx context.Context, path string, info Info) (FrameWriter, error)
}

// FrameCount satisfies the frame counter used by index initialization.
func FrameCount(ctx context.Context, b Backend, path string) (int, error) {
	info, err := b.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.FrameCount, nil
}

type Options struct {
	Codec   string
	Threads int
}

type Factory func(logger *slog.Logger, opts Options) (Backend, error)

var backends = map[string]Factory{}

func Register(name string, f Factory) {
	backends[name] = f
}

// NewBackend builds the backend registered under name.
func NewBackend(name string, logger *slog.Logger, opts Options) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("video backend %q is not available (compiled in: %s)", name, strings.Join(Available(), ", "))
	}
	return f(logger, opts)
}

func Available() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
