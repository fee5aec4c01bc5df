// Package catalog lists source videos and derives clip and preview names
// from a clip's identity: the video stem plus a zero-based clip index.
package catalog

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
)

const (
	DefaultClipExt    = "mp4"
	DefaultPreviewExt = "gif"
)

var (
	ErrVideoDirNotFound = fmt.Errorf("video directory not found: %w", apperr.ErrNotFound)
	ErrNoVideos         = fmt.Errorf("no video files found: %w", apperr.ErrInvalidState)
)

var VideoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ListVideos returns the paths of the video files directly inside dir,
// sorted by filename.
func ListVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrVideoDirNotFound, dir)
		}
		return nil, fmt.Errorf("failed to read video directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsVideoFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoVideos, dir)
	}

	sort.Strings(names)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// Stem returns the video filename without directory and extension.
func Stem(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ClipFilename names the full-resolution file for a clip, e.g. video_1.mp4.
func ClipFilename(stem string, clipIdx int, ext string) string {
	return fmt.Sprintf("%s_%d.%s", stem, clipIdx, strings.TrimPrefix(ext, "."))
}

// PreviewDir is the directory holding every preview of one video.
func PreviewDir(clipRoot, stem string) string {
	return filepath.Join(clipRoot, stem)
}

// PreviewFilename names a preview inside its video's preview directory, e.g. 1.gif.
func PreviewFilename(clipIdx int, ext string) string {
	return fmt.Sprintf("%d.%s", clipIdx, strings.TrimPrefix(ext, "."))
}

func PreviewPath(clipRoot, stem string, clipIdx int, ext string) string {
	return filepath.Join(PreviewDir(clipRoot, stem), PreviewFilename(clipIdx, ext))
}

// ParsePreviewIndex extracts the clip index from a preview filename.
func ParsePreviewIndex(filename, ext string) (int, bool) {
	suffix := "." + strings.TrimPrefix(ext, ".")
	if !strings.HasSuffix(strings.ToLower(filename), strings.ToLower(suffix)) {
		return 0, false
	}
	idx, err := strconv.Atoi(filename[:len(filename)-len(suffix)])
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// Preview is one preview file found on disk.
type Preview struct {
	ClipIndex int
	Path      string
}

// ListPreviews returns the previews of one video ordered by clip index.
// A missing directory yields an empty list.
func ListPreviews(clipRoot, stem, ext string) ([]Preview, error) {
	dir := PreviewDir(clipRoot, stem)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read preview directory: %w", err)
	}

	var previews []Preview
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, ok := ParsePreviewIndex(e.Name(), ext)
		if !ok {
			continue
		}
		previews = append(previews, Preview{ClipIndex: idx, Path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(previews, func(i, j int) bool {
		return previews[i].ClipIndex < previews[j].ClipIndex
	})
	return previews, nil
}
