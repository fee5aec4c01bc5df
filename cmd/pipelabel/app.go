package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/config"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/db"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/logging"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/video"
)

// openStore opens the configured annotation store. The caller closes it.
func (a *app) openStore() (annotation.Store, error) {
	logger := logging.WithComponent(a.logger, "annotation")

	switch a.cfg.Store {
	case config.StoreSQLite:
		if err := os.MkdirAll(a.cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		database, err := db.New(a.cfg.DBPath(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return annotation.NewSQLiteStore(database, logger), nil
	default:
		return annotation.NewJSONStore(a.cfg.IndexPath(), logger), nil
	}
}

func (a *app) backend() (video.Backend, error) {
	b, err := video.NewBackend(a.cfg.VideoBackend, logging.WithComponent(a.logger, "video"), video.Options{
		Codec:   a.cfg.FFmpegCodec,
		Threads: a.cfg.FFmpegThreads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create video backend: %w", err)
	}
	return b, nil
}

// initializeIndex counts frames of every video and replaces the stored
// index with an all-unlabeled one.
func (a *app) initializeIndex(ctx context.Context, backend video.Backend, videos []string) (*annotation.Index, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	svc := annotation.NewService(store, logging.WithComponent(a.logger, "annotation"))
	counter := func(ctx context.Context, path string) (int, error) {
		return video.FrameCount(ctx, backend, path)
	}
	return svc.Initialize(ctx, videos, a.cfg.ClipSize, counter)
}
