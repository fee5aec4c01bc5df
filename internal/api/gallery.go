package api

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
)

//go:embed templates/gallery.html
var galleryHTML string

var galleryTemplate = template.Must(template.New("gallery").Parse(galleryHTML))

type galleryData struct {
	Videos   []VideoResponse
	Selected string
	Labels   []LabelResponse
	Cards    []ClipResponse
	Labeled  int
	Total    int
	Error    string
}

func galleryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := galleryData{Labels: LabelsToResponse(cfg.Labels).Labels}

		ix, err := cfg.Annotations.Index(r.Context())
		switch {
		case annotation.IsNotInitialized(err):
			data.Error = "No annotation index yet. Run `pipelabel init` or `pipelabel segment` first."
		case err != nil:
			cfg.Logger.Error("failed to load index", "error", err)
			data.Error = "Failed to load the annotation index: " + err.Error()
		default:
			data.Labeled, data.Total = ix.Progress()
			for _, e := range ix.LabelList {
				data.Videos = append(data.Videos, VideoToResponse(e, ix.ClipSize))
			}
			data.Selected = r.URL.Query().Get("video")
			if data.Selected == "" && len(ix.VideoList) > 0 {
				data.Selected = ix.VideoList[0]
			}
			if entry, ok := ix.Entry(data.Selected); ok {
				cards, err := clipCards(cfg, entry)
				if err != nil {
					cfg.Logger.Error("failed to list previews", "video", data.Selected, "error", err)
					data.Error = "Failed to list previews for " + data.Selected
				}
				data.Cards = cards
			} else if data.Selected != "" {
				data.Error = "Video not found in index: " + data.Selected
			}
		}

		var buf bytes.Buffer
		if err := galleryTemplate.Execute(&buf, data); err != nil {
			cfg.Logger.Error("failed to render gallery", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to render page", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		buf.WriteTo(w)
	}
}
