package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/export"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/labelmap"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/playback"
)

// LabelExporter writes the label CSV for the current index.
type LabelExporter interface {
	Export(ctx context.Context, outputDir string) (*export.ExportResponse, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Host        string
	Port        int
	Annotations annotation.AnnotationService
	Labels      *labelmap.LabelMap
	Exporter    LabelExporter
	ExportDir   string
	Previews    playback.PlaybackService
	ClipDir     string
	PreviewExt  string
	StoreName   string
	Version     string
	Logger      *slog.Logger
	StartTime   time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// URL is the address a browser should open.
func (s *Server) URL() string {
	return "http://" + s.httpServer.Addr + "/"
}
