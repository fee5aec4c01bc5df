package api

import (
	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/labelmap"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Store   string `json:"store"`
}

type LabelResponse struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type LabelsResponse struct {
	Labels []LabelResponse `json:"labels"`
}

type VideoResponse struct {
	Name        string `json:"name"`
	Stem        string `json:"stem"`
	TotalFrames int    `json:"total_frames"`
	Slots       int    `json:"slots"`
	Clips       int    `json:"clips"`
	Labeled     int    `json:"labeled"`
}

type VideosResponse struct {
	ClipSize int             `json:"clip_size"`
	Labeled  int             `json:"labeled"`
	Total    int             `json:"total"`
	Videos   []VideoResponse `json:"videos"`
}

type ClipResponse struct {
	Index      int    `json:"index"`
	PreviewURL string `json:"preview_url"`
	Label      int    `json:"label"`
	LabelName  string `json:"label_name,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ClipsResponse struct {
	Video string         `json:"video"`
	Clips []ClipResponse `json:"clips"`
}

type SetLabelRequest struct {
	Label string `json:"label"`
}

type ClipLabelResponse struct {
	Video     string `json:"video"`
	Clip      int    `json:"clip"`
	Label     int    `json:"label"`
	LabelName string `json:"label_name,omitempty"`
}

type EventsResponse struct {
	Events []annotation.LabelEvent `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func LabelsToResponse(m *labelmap.LabelMap) LabelsResponse {
	names := m.Names()
	resp := LabelsResponse{Labels: make([]LabelResponse, 0, len(names))}
	for _, name := range names {
		idx, _ := m.Index(name)
		resp.Labels = append(resp.Labels, LabelResponse{Index: idx, Name: name})
	}
	return resp
}

func VideoToResponse(e annotation.VideoEntry, clipSize int) VideoResponse {
	return VideoResponse{
		Name:        e.VideoName,
		Stem:        catalog.Stem(e.VideoName),
		TotalFrames: e.TotalFrames,
		Slots:       len(e.Labels),
		Clips:       annotation.ClipCount(e.TotalFrames, clipSize),
		Labeled:     e.Labeled(),
	}
}

func ClipLabelToResponse(video string, clip, label int, m *labelmap.LabelMap) ClipLabelResponse {
	resp := ClipLabelResponse{Video: video, Clip: clip, Label: label}
	if name, ok := m.Name(label); ok {
		resp.LabelName = name
	}
	return resp
}
