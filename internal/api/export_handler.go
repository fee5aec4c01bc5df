package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/export"
)

func exportLabelsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Exporter == nil {
			WriteError(w, http.StatusServiceUnavailable, "export is not configured", "UNAVAILABLE")
			return
		}

		var req export.ExportRequest
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		outputDir := req.OutputDir
		if outputDir == "" {
			outputDir = filepath.Clean(cfg.ExportDir)
		}
		if err := export.ValidateOutputDir(outputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		resp, err := cfg.Exporter.Export(r.Context(), outputDir)
		if err != nil {
			cfg.Logger.Error("export failed", "output_dir", outputDir, "error", err)
			WriteAppError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}
