package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/metrics"
)

var ErrEventsUnsupported = fmt.Errorf("label history is not kept by this store: %w", apperr.ErrInvalidState)

type AnnotationService interface {
	Initialize(ctx context.Context, videos []string, clipSize int, count FrameCounter) (*Index, error)
	Index(ctx context.Context) (*Index, error)
	Label(ctx context.Context, videoName string, clip int) (int, error)
	Update(ctx context.Context, videoName string, labels LabelIndexer, labelName string, clip int) error
	Events(ctx context.Context, videoName string, limit int) ([]LabelEvent, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Initialize builds a fresh all-unlabeled index and replaces the stored one.
func (s *Service) Initialize(ctx context.Context, videos []string, clipSize int, count FrameCounter) (*Index, error) {
	ix, err := Build(ctx, videos, clipSize, count)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, ix); err != nil {
		return nil, fmt.Errorf("failed to save annotation index: %w", err)
	}

	if s.logger != nil {
		_, slots := ix.Progress()
		s.logger.Info("annotation index initialized",
			"videos", len(ix.VideoList), "clip_size", clipSize, "slots", slots)
	}
	return ix, nil
}

func (s *Service) Index(ctx context.Context) (*Index, error) {
	return s.store.Load(ctx)
}

// Label returns the stored value of one slot, possibly Unlabeled.
func (s *Service) Label(ctx context.Context, videoName string, clip int) (int, error) {
	ix, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	entry, ok := ix.Entry(videoName)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrVideoNotFound, videoName)
	}
	if err := checkSlot(entry, clip); err != nil {
		return 0, err
	}
	return entry.Labels[clip], nil
}

// Update assigns labelName to one clip of videoName and persists the index.
// Applying the same update twice leaves the same stored state.
func (s *Service) Update(ctx context.Context, videoName string, labels LabelIndexer, labelName string, clip int) error {
	previous, err := s.store.SetLabel(ctx, videoName, clip, labelName, labels)
	if err != nil {
		metrics.LabelUpdatesTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
		if s.logger != nil {
			s.logger.Warn("label update rejected",
				"video", videoName, "clip", clip, "label", labelName, "error", err)
		}
		return err
	}

	metrics.LabelUpdatesTotal.WithLabelValues("ok").Inc()
	if s.logger != nil {
		s.logger.Info("label updated",
			"video", videoName, "clip", clip, "label", labelName, "previous", previous)
	}
	return nil
}

func (s *Service) Events(ctx context.Context, videoName string, limit int) ([]LabelEvent, error) {
	lister, ok := s.store.(EventLister)
	if !ok {
		return nil, ErrEventsUnsupported
	}
	return lister.Events(ctx, videoName, limit)
}

// IsNotInitialized reports whether err means no index has been written yet.
func IsNotInitialized(err error) bool {
	return errors.Is(err, ErrIndexNotFound)
}
