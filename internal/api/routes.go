package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
)

const defaultEventLimit = 100

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/", galleryHandler(cfg))
	r.Get("/health", healthHandler(cfg))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/previews/{stem}/{file}", previewHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Get("/labels", listLabelsHandler(cfg))
		r.Get("/videos", listVideosHandler(cfg))
		r.Get("/videos/{video}/clips", listClipsHandler(cfg))
		r.Get("/videos/{video}/clips/{clip}/label", getLabelHandler(cfg))
		r.Put("/videos/{video}/clips/{clip}/label", setLabelHandler(cfg))
		r.Get("/events", listEventsHandler(cfg))
		r.Post("/export", exportLabelsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			Store:   cfg.StoreName,
		})
	}
}

func listLabelsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, LabelsToResponse(cfg.Labels))
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ix, err := cfg.Annotations.Index(r.Context())
		if err != nil {
			WriteAppError(w, err)
			return
		}

		labeled, total := ix.Progress()
		resp := VideosResponse{
			ClipSize: ix.ClipSize,
			Labeled:  labeled,
			Total:    total,
			Videos:   make([]VideoResponse, 0, len(ix.LabelList)),
		}
		for _, e := range ix.LabelList {
			resp.Videos = append(resp.Videos, VideoToResponse(e, ix.ClipSize))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := videoParam(w, r)
		if !ok {
			return
		}

		ix, err := cfg.Annotations.Index(r.Context())
		if err != nil {
			WriteAppError(w, err)
			return
		}
		entry, found := ix.Entry(video)
		if !found {
			WriteError(w, http.StatusNotFound, "video not found in index: "+video, "NOT_FOUND")
			return
		}

		clips, err := clipCards(cfg, entry)
		if err != nil {
			cfg.Logger.Error("failed to list previews", "video", video, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list previews", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, ClipsResponse{Video: video, Clips: clips})
	}
}

func getLabelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := videoParam(w, r)
		if !ok {
			return
		}
		clip, ok := clipParam(w, r)
		if !ok {
			return
		}

		label, err := cfg.Annotations.Label(r.Context(), video, clip)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClipLabelToResponse(video, clip, label, cfg.Labels))
	}
}

func setLabelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		video, ok := videoParam(w, r)
		if !ok {
			return
		}
		clip, ok := clipParam(w, r)
		if !ok {
			return
		}

		var req SetLabelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Label == "" {
			WriteError(w, http.StatusBadRequest, "label is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Annotations.Update(r.Context(), video, cfg.Labels, req.Label, clip); err != nil {
			WriteAppError(w, err)
			return
		}

		label, err := cfg.Annotations.Label(r.Context(), video, clip)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClipLabelToResponse(video, clip, label, cfg.Labels))
	}
}

func listEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultEventLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		events, err := cfg.Annotations.Events(r.Context(), r.URL.Query().Get("video"), limit)
		if err != nil {
			WriteAppError(w, err)
			return
		}
		if events == nil {
			events = []annotation.LabelEvent{}
		}
		WriteJSON(w, http.StatusOK, EventsResponse{Events: events})
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stem, err := url.PathUnescape(chi.URLParam(r, "stem"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid preview path", "BAD_REQUEST")
			return
		}
		file, err := url.PathUnescape(chi.URLParam(r, "file"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid preview path", "BAD_REQUEST")
			return
		}

		if err := cfg.Previews.ServeFile(w, r, stem+"/"+file); err != nil {
			cfg.Logger.Error("preview error", "stem", stem, "file", file, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read preview", "INTERNAL_ERROR")
		}
	}
}

// clipCards lists a video's previews with the label of the matching slot.
// A preview with no slot in the index is reported with an error instead
// of failing the whole listing.
func clipCards(cfg ServerConfig, entry *annotation.VideoEntry) ([]ClipResponse, error) {
	stem := catalog.Stem(entry.VideoName)
	previews, err := catalog.ListPreviews(cfg.ClipDir, stem, cfg.PreviewExt)
	if err != nil {
		return nil, err
	}

	clips := make([]ClipResponse, 0, len(previews))
	for _, p := range previews {
		c := ClipResponse{
			Index:      p.ClipIndex,
			PreviewURL: previewURL(stem, p.ClipIndex, cfg.PreviewExt),
			Label:      annotation.Unlabeled,
		}
		if p.ClipIndex < len(entry.Labels) {
			c.Label = entry.Labels[p.ClipIndex]
			if name, ok := cfg.Labels.Name(c.Label); ok {
				c.LabelName = name
			}
		} else {
			c.Error = "clip has no slot in the annotation index"
		}
		clips = append(clips, c)
	}
	return clips, nil
}

func previewURL(stem string, clip int, ext string) string {
	return "/previews/" + url.PathEscape(stem) + "/" + catalog.PreviewFilename(clip, ext)
}

func videoParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	video, err := url.PathUnescape(chi.URLParam(r, "video"))
	if err != nil || video == "" {
		WriteError(w, http.StatusBadRequest, "invalid video name", "BAD_REQUEST")
		return "", false
	}
	return video, true
}

func clipParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	clip, err := strconv.Atoi(chi.URLParam(r, "clip"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "clip must be an integer", "BAD_REQUEST")
		return 0, false
	}
	return clip, true
}
