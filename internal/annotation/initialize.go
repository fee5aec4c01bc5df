package annotation

import (
	"context"
	"fmt"
	"path/filepath"
)

// FrameCounter reports the container frame count of a video file.
type FrameCounter func(ctx context.Context, path string) (int, error)

// Build creates a fresh index with every slot unlabeled. Video names are
// the base filenames of videos, in the given order.
func Build(ctx context.Context, videos []string, clipSize int, count FrameCounter) (*Index, error) {
	if clipSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidClipSize, clipSize)
	}

	ix := &Index{
		VideoList: make([]string, 0, len(videos)),
		ClipSize:  clipSize,
		LabelList: make([]VideoEntry, 0, len(videos)),
	}

	for _, path := range videos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frames, err := count(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to count frames of %s: %w", path, err)
		}

		labels := make([]int, SlotCount(frames, clipSize))
		for i := range labels {
			labels[i] = Unlabeled
		}

		name := filepath.Base(path)
		ix.VideoList = append(ix.VideoList, name)
		ix.LabelList = append(ix.LabelList, VideoEntry{
			VideoName:   name,
			TotalFrames: frames,
			Labels:      labels,
		})
	}

	return ix, nil
}
