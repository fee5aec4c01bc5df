// Package playback serves preview and clip files from a fixed root
// directory. Requests can never reach files outside that root.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("path escapes served root")

type PlaybackService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, relPath string) error
}

type Server struct {
	root   string
	logger *slog.Logger
}

func NewServer(root string, logger *slog.Logger) *Server {
	return &Server{root: root, logger: logger}
}

// Resolve joins relPath onto the root, rejecting absolute paths and any
// path that would climb out of it.
func (s *Server) Resolve(relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) || strings.Contains(relPath, "\\") {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, relPath)
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrOutsideRoot, relPath)
		}
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("invalid root: %w", err)
	}
	full := filepath.Join(root, filepath.FromSlash(relPath))
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, relPath)
	}
	return full, nil
}

// ServeFile writes the file at relPath with range and conditional request
// support. Missing files and rejected paths are answered with 404.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, relPath string) error {
	full, err := s.Resolve(relPath)
	if err != nil {
		s.logger.Warn("rejected file request", "path", relPath, "error", err)
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	return nil
}
