package export

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/segment"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/video"
)

// TestSegmentLabelExport runs the whole workflow on a 95-frame video with
// 30-frame clips: three clips, four slots, and one exported row.
func TestSegmentLabelExport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := video.NewFFmpeg(logger, video.Options{})
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	data := t.TempDir()
	videoDir := filepath.Join(data, "videos")
	clipDir := filepath.Join(data, "clips")
	outDir := filepath.Join(data, "output")
	if err := os.MkdirAll(videoDir, 0755); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(videoDir, "video.mp4")
	cmd := exec.Command("ffmpeg", "-y", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=30",
		"-frames:v", "95", "-c:v", "mpeg4", "-pix_fmt", "yuv420p", src)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to render test video: %v: %s", err, out)
	}

	ctx := context.Background()
	videos, err := catalog.ListVideos(videoDir)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}

	seg := segment.New(backend, logger, segment.Options{ClipSize: 30})
	if _, err := seg.Run(ctx, videos, clipDir, outDir); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, name := range []string{"video_0.mp4", "video_1.mp4", "video_2.mp4"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("clip %s missing: %v", name, err)
		}
		if _, err := os.Stat(catalog.PreviewPath(clipDir, "video", i, "gif")); err != nil {
			t.Errorf("preview %d missing: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "video_3.mp4")); !os.IsNotExist(err) {
		t.Error("partial trailing clip was written")
	}

	svc := annotation.NewService(annotation.NewJSONStore(filepath.Join(data, annotation.DefaultIndexFilename), logger), logger)
	counter := func(ctx context.Context, path string) (int, error) {
		return video.FrameCount(ctx, backend, path)
	}
	ix, err := svc.Initialize(ctx, videos, 30, counter)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := len(ix.LabelList[0].Labels); got != 4 {
		t.Fatalf("slots = %d, want 4", got)
	}

	labels := writeLabelMap(t, "walk\nrun\nfall\n")
	if err := svc.Update(ctx, "video.mp4", labels, "run", 1); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	exportDir := filepath.Join(data, "export")
	if _, err := New(svc, labels, "", logger).Export(ctx, exportDir); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	csv, err := os.ReadFile(filepath.Join(exportDir, CSVFilename))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if strings.TrimSpace(string(csv)) != "video_1.mp4,run" {
		t.Errorf("csv = %q, want %q", csv, "video_1.mp4,run\n")
	}
}
