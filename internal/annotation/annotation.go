// Package annotation holds the per-video, per-clip label index and the
// stores that persist it.
package annotation

import (
	"context"
	"fmt"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
)

// Unlabeled marks a slot nobody has labeled yet. It is never a label map index.
const Unlabeled = -1

var (
	ErrIndexNotFound   = fmt.Errorf("annotation index not found: %w", apperr.ErrNotFound)
	ErrVideoNotFound   = fmt.Errorf("video not found in annotation index: %w", apperr.ErrNotFound)
	ErrClipOutOfRange  = fmt.Errorf("clip index out of range: %w", apperr.ErrInvalidState)
	ErrLabelNotFound   = fmt.Errorf("label not found in label map: %w", apperr.ErrNotFound)
	ErrInvalidClipSize = fmt.Errorf("clip size must be positive: %w", apperr.ErrInvalidState)
)

type VideoEntry struct {
	VideoName   string `json:"video_name"`
	TotalFrames int    `json:"total_frames"`
	Labels      []int  `json:"label"`
}

// Labeled counts the slots holding a real label.
func (e VideoEntry) Labeled() int {
	n := 0
	for _, l := range e.Labels {
		if l != Unlabeled {
			n++
		}
	}
	return n
}

// Index mirrors the on-disk JSON layout. VideoList[i] always names
// LabelList[i]; a video's position is its identity.
type Index struct {
	VideoList []string     `json:"video_list"`
	ClipSize  int          `json:"clip_size"`
	LabelList []VideoEntry `json:"label_list"`
}

func (ix *Index) Position(videoName string) (int, bool) {
	for i, name := range ix.VideoList {
		if name == videoName {
			return i, true
		}
	}
	return 0, false
}

func (ix *Index) Entry(videoName string) (*VideoEntry, bool) {
	pos, ok := ix.Position(videoName)
	if !ok || pos >= len(ix.LabelList) {
		return nil, false
	}
	return &ix.LabelList[pos], true
}

// Progress returns labeled and total slot counts across all videos.
func (ix *Index) Progress() (labeled, total int) {
	for _, e := range ix.LabelList {
		labeled += e.Labeled()
		total += len(e.Labels)
	}
	return labeled, total
}

// SlotCount is the number of label slots for a video: one per potential
// clip, including a trailing partial group.
func SlotCount(totalFrames, clipSize int) int {
	if clipSize <= 0 || totalFrames <= 0 {
		return 0
	}
	return (totalFrames + clipSize - 1) / clipSize
}

// ClipCount is the number of full clips the segmenter emits for a video.
func ClipCount(totalFrames, clipSize int) int {
	if clipSize <= 0 || totalFrames <= 0 {
		return 0
	}
	return totalFrames / clipSize
}

// LabelIndexer resolves a label name to its label map index.
type LabelIndexer interface {
	Index(name string) (int, bool)
}

// Store persists an Index. SetLabel must validate and write in isolation
// from other SetLabel and Save calls.
type Store interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, ix *Index) error
	// SetLabel checks the video, then the clip bound against that video's
	// slots, then the label name, and returns the slot's previous value.
	SetLabel(ctx context.Context, videoName string, clip int, labelName string, labels LabelIndexer) (int, error)
	Close() error
}

// LabelEvent records one label assignment.
type LabelEvent struct {
	ID        int64  `json:"id"`
	VideoName string `json:"video_name"`
	ClipIndex int    `json:"clip_index"`
	Label     int    `json:"label"`
	LabelName string `json:"label_name"`
	CreatedAt string `json:"created_at"`
}

// EventLister is implemented by stores that keep label history.
type EventLister interface {
	Events(ctx context.Context, videoName string, limit int) ([]LabelEvent, error)
}

func checkSlot(entry *VideoEntry, clip int) error {
	if clip < 0 || clip >= len(entry.Labels) {
		return fmt.Errorf("%w: clip %d of %s (slots: %d)", ErrClipOutOfRange, clip, entry.VideoName, len(entry.Labels))
	}
	return nil
}

func resolveLabel(labels LabelIndexer, name string) (int, error) {
	idx, ok := labels.Index(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrLabelNotFound, name)
	}
	return idx, nil
}
