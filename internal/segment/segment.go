// Package segment cuts source videos into fixed-size clips, writing each
// clip as a video file plus an animated preview.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/metrics"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/video"
)

type Options struct {
	ClipSize        int
	ClipExt         string
	PreviewMaxWidth int
	// Progress receives the per-video progress bar. Nil disables it.
	Progress io.Writer
}

type Segmenter struct {
	backend video.Backend
	logger  *slog.Logger
	opts    Options
}

func New(backend video.Backend, logger *slog.Logger, opts Options) *Segmenter {
	if opts.ClipExt == "" {
		opts.ClipExt = catalog.DefaultClipExt
	}
	return &Segmenter{backend: backend, logger: logger, opts: opts}
}

// Result describes what was written for one source video.
type Result struct {
	Video       string
	Stem        string
	TotalFrames int
	Clips       []string
	Previews    []string
}

// Run segments every video in order. The first failing video aborts the run.
func (s *Segmenter) Run(ctx context.Context, videos []string, clipDir, outputDir string) ([]Result, error) {
	if s.opts.ClipSize <= 0 {
		return nil, fmt.Errorf("%w: %d", annotation.ErrInvalidClipSize, s.opts.ClipSize)
	}

	s.logger.Info("cutting videos into clips",
		"videos", len(videos), "clip_size", s.opts.ClipSize, "backend", s.backend.Name())

	for _, dir := range []string{clipDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	results := make([]Result, 0, len(videos))
	for _, path := range videos {
		res, err := s.SegmentVideo(ctx, path, clipDir, outputDir)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}

	s.logger.Info("video clips saved", "clip_dir", clipDir, "output_dir", outputDir)
	return results, nil
}

// SegmentVideo writes floor(total_frames/clip_size) clips of one video.
// Existing clip and preview files are overwritten.
func (s *Segmenter) SegmentVideo(ctx context.Context, path, clipDir, outputDir string) (*Result, error) {
	start := time.Now()

	reader, err := s.backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	info := reader.Info()
	stem := catalog.Stem(path)
	previewDir := catalog.PreviewDir(clipDir, stem)
	if err := os.MkdirAll(previewDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clip directory: %w", err)
	}

	clipCount := annotation.ClipCount(info.FrameCount, s.opts.ClipSize)
	res := &Result{Video: path, Stem: stem, TotalFrames: info.FrameCount}

	s.logger.Debug("segmenting video",
		"path", path, "frames", info.FrameCount, "fps", info.FPS,
		"width", info.Width, "height", info.Height, "clips", clipCount)

	bar := s.newBar(clipCount, fmt.Sprintf("Processing %s(%s) to clips", stem, path))

	for i := 0; i < clipCount; i++ {
		clipPath := filepath.Join(outputDir, catalog.ClipFilename(stem, i, s.opts.ClipExt))
		previewPath := catalog.PreviewPath(clipDir, stem, i, catalog.DefaultPreviewExt)

		n, ended, err := s.writeClip(ctx, reader, info, i*s.opts.ClipSize, clipPath, previewPath)
		if err != nil {
			return nil, fmt.Errorf("clip %d of %s: %w", i, path, err)
		}
		if n > 0 {
			res.Clips = append(res.Clips, clipPath)
			res.Previews = append(res.Previews, previewPath)
		}
		bar.Add(1)

		if ended {
			s.logger.Warn("video ended before its reported frame count",
				"path", path, "clip", i, "frames_in_clip", n, "reported_frames", info.FrameCount)
			break
		}
	}
	bar.Finish()

	metrics.SegmentDuration.WithLabelValues(s.backend.Name()).Observe(time.Since(start).Seconds())
	s.logger.Info("video segmented",
		"path", path, "clips", len(res.Clips), "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// writeClip copies up to ClipSize frames starting at startFrame into a clip
// file and a preview. Writers are created on the first decoded frame, so a
// stream that is already exhausted leaves no files behind.
func (s *Segmenter) writeClip(ctx context.Context, reader video.Reader, info video.Info, startFrame int, clipPath, previewPath string) (written int, ended bool, err error) {
	if err := reader.Seek(startFrame); err != nil {
		return 0, false, fmt.Errorf("failed to seek to frame %d: %w", startFrame, err)
	}

	var clip video.FrameWriter
	var preview *video.GIFWriter
	defer func() {
		if clip != nil {
			if cerr := clip.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if preview != nil {
			if cerr := preview.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if err == nil && written > 0 {
			metrics.ClipsWrittenTotal.Inc()
			metrics.PreviewsWrittenTotal.Inc()
		}
	}()

	for written < s.opts.ClipSize {
		if err := ctx.Err(); err != nil {
			return written, false, err
		}

		frame, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return written, true, nil
		}
		if err != nil {
			return written, false, err
		}
		metrics.FramesReadTotal.Inc()

		if clip == nil {
			if clip, err = s.backend.CreateClip(ctx, clipPath, info); err != nil {
				return written, false, err
			}
			if preview, err = video.NewGIFWriter(previewPath, info.FPS, s.opts.PreviewMaxWidth); err != nil {
				return written, false, err
			}
		}

		if err := clip.WriteFrame(frame); err != nil {
			return written, false, err
		}
		if err := preview.WriteFrame(frame); err != nil {
			return written, false, err
		}
		written++
	}
	return written, false, nil
}

func (s *Segmenter) newBar(max int, description string) *progressbar.ProgressBar {
	w := s.opts.Progress
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetRenderBlankState(true),
	)
}
