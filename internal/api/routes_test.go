package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/export"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/labelmap"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/playback"
)

type testEnv struct {
	router    *chi.Mux
	cfg       ServerConfig
	svc       *annotation.Service
	clipDir   string
	exportDir string
}

func newTestEnv(t *testing.T, initialize bool) *testEnv {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mapPath := filepath.Join(root, "label_map.txt")
	if err := os.WriteFile(mapPath, []byte("walk\nrun\nfall\n"), 0644); err != nil {
		t.Fatal(err)
	}
	labels, err := labelmap.Load(mapPath)
	if err != nil {
		t.Fatalf("labelmap.Load() error = %v", err)
	}

	clipDir := filepath.Join(root, "clips")
	for _, name := range []string{"0.gif", "1.gif", "2.gif", "10.gif"} {
		p := filepath.Join(clipDir, "video_1", name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("GIF89a"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	store := annotation.NewJSONStore(filepath.Join(root, annotation.DefaultIndexFilename), logger)
	svc := annotation.NewService(store, logger)
	if initialize {
		counter := func(ctx context.Context, path string) (int, error) {
			return map[string]int{"videos/video_1.mp4": 95, "videos/video_2.mp4": 60}[path], nil
		}
		if _, err := svc.Initialize(context.Background(),
			[]string{"videos/video_1.mp4", "videos/video_2.mp4"}, 30, counter); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
	}

	exportDir := filepath.Join(root, "output")
	cfg := ServerConfig{
		Port:        8501,
		Annotations: svc,
		Labels:      labels,
		Exporter:    export.New(svc, labels, "mp4", logger),
		ExportDir:   exportDir,
		Previews:    playback.NewServer(clipDir, logger),
		ClipDir:     clipDir,
		PreviewExt:  "gif",
		StoreName:   "json",
		Version:     "test",
		Logger:      logger,
		StartTime:   time.Now(),
	}
	return &testEnv{router: NewRouter(cfg), cfg: cfg, svc: svc, clipDir: clipDir, exportDir: exportDir}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, http.MethodGet, "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "ok" || resp.Store != "json" || resp.Version != "test" {
		t.Errorf("health = %+v", resp)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestMetricsHandler(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default collectors")
	}
}

func TestListLabels(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, http.MethodGet, "/api/labels", "")

	var resp LabelsResponse
	decode(t, rr, &resp)
	want := []LabelResponse{{0, "walk"}, {1, "run"}, {2, "fall"}}
	if len(resp.Labels) != len(want) {
		t.Fatalf("labels = %v, want %v", resp.Labels, want)
	}
	for i := range want {
		if resp.Labels[i] != want[i] {
			t.Errorf("label %d = %v, want %v", i, resp.Labels[i], want[i])
		}
	}
}

func TestListVideos_NotInitialized(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, http.MethodGet, "/api/videos", "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	var resp ErrorResponse
	decode(t, rr, &resp)
	if resp.Code != "NOT_FOUND" {
		t.Errorf("code = %s, want NOT_FOUND", resp.Code)
	}
}

func TestListVideos(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.do(t, http.MethodGet, "/api/videos", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp VideosResponse
	decode(t, rr, &resp)
	if resp.ClipSize != 30 || resp.Total != 6 || resp.Labeled != 0 {
		t.Errorf("videos = %+v", resp)
	}
	if len(resp.Videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(resp.Videos))
	}
	v := resp.Videos[0]
	if v.Name != "video_1.mp4" || v.Stem != "video_1" || v.Slots != 4 || v.Clips != 3 {
		t.Errorf("video[0] = %+v", v)
	}
}

func TestListClips(t *testing.T) {
	env := newTestEnv(t, true)
	if err := env.svc.Update(context.Background(), "video_1.mp4", env.cfg.Labels, "run", 1); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, http.MethodGet, "/api/videos/video_1.mp4/clips", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp ClipsResponse
	decode(t, rr, &resp)

	if len(resp.Clips) != 4 {
		t.Fatalf("got %d clips, want 4", len(resp.Clips))
	}
	wantOrder := []int{0, 1, 2, 10}
	for i, c := range resp.Clips {
		if c.Index != wantOrder[i] {
			t.Errorf("clip %d index = %d, want %d", i, c.Index, wantOrder[i])
		}
	}
	if resp.Clips[1].Label != 1 || resp.Clips[1].LabelName != "run" {
		t.Errorf("clip 1 = %+v, want run", resp.Clips[1])
	}
	if resp.Clips[0].Label != annotation.Unlabeled {
		t.Errorf("clip 0 label = %d, want unlabeled", resp.Clips[0].Label)
	}
	if resp.Clips[3].Error == "" {
		t.Error("clip 10 has no slot and should report an error")
	}
	if resp.Clips[2].PreviewURL != "/previews/video_1/2.gif" {
		t.Errorf("preview url = %s", resp.Clips[2].PreviewURL)
	}

	rr = env.do(t, http.MethodGet, "/api/videos/missing.mp4/clips", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing video status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSetAndGetLabel(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, http.MethodPut, "/api/videos/video_1.mp4/clips/1/label", `{"label":"run"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var put ClipLabelResponse
	decode(t, rr, &put)
	if put.Label != 1 || put.LabelName != "run" {
		t.Errorf("PUT response = %+v", put)
	}

	rr = env.do(t, http.MethodGet, "/api/videos/video_1.mp4/clips/1/label", "")
	var got ClipLabelResponse
	decode(t, rr, &got)
	if got.Label != 1 {
		t.Errorf("GET label = %d, want 1", got.Label)
	}

	rr = env.do(t, http.MethodGet, "/api/videos/video_1.mp4/clips/0/label", "")
	decode(t, rr, &got)
	if got.Label != annotation.Unlabeled || got.LabelName != "" {
		t.Errorf("untouched clip = %+v, want unlabeled", got)
	}
}

func TestSetLabel_Errors(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown video", "/api/videos/nope.mp4/clips/0/label", `{"label":"run"}`, http.StatusNotFound, "NOT_FOUND"},
		{"clip out of range", "/api/videos/video_2.mp4/clips/2/label", `{"label":"run"}`, http.StatusUnprocessableEntity, "INVALID_STATE"},
		{"negative clip", "/api/videos/video_1.mp4/clips/-1/label", `{"label":"run"}`, http.StatusUnprocessableEntity, "INVALID_STATE"},
		{"unknown label", "/api/videos/video_1.mp4/clips/0/label", `{"label":"jump"}`, http.StatusNotFound, "NOT_FOUND"},
		{"non-numeric clip", "/api/videos/video_1.mp4/clips/x/label", `{"label":"run"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad body", "/api/videos/video_1.mp4/clips/0/label", `{`, http.StatusBadRequest, "BAD_REQUEST"},
		{"empty label", "/api/videos/video_1.mp4/clips/0/label", `{"label":""}`, http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPut, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			var resp ErrorResponse
			decode(t, rr, &resp)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
			}
		})
	}

	ix, err := env.svc.Index(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if labeled, _ := ix.Progress(); labeled != 0 {
		t.Errorf("rejected updates changed the index: %d labeled", labeled)
	}
}

func TestListEvents_JSONStoreUnsupported(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.do(t, http.MethodGet, "/api/events", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	rr = env.do(t, http.MethodGet, "/api/events?limit=0", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPreviewHandler(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/previews/video_1/0.gif", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "GIF89a" {
		t.Errorf("body = %q", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/previews/video_1/9.gif", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing preview status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = env.do(t, http.MethodGet, "/previews/..%2F..%2Fetc/passwd", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("traversal status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

type brokenPreviews struct{}

func (brokenPreviews) ServeFile(w http.ResponseWriter, r *http.Request, relPath string) error {
	return errors.New("failed to open file: permission denied")
}

func TestPreviewHandler_ReadFailure(t *testing.T) {
	env := newTestEnv(t, false)
	cfg := env.cfg
	cfg.Previews = brokenPreviews{}
	router := NewRouter(cfg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/previews/video_1/0.gif", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var resp ErrorResponse
	decode(t, rr, &resp)
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %s, want INTERNAL_ERROR", resp.Code)
	}
}

func TestGallery(t *testing.T) {
	env := newTestEnv(t, true)
	if err := env.svc.Update(context.Background(), "video_1.mp4", env.cfg.Labels, "fall", 2); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, http.MethodGet, "/?video=video_1.mp4", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %s", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`src="/previews/video_1/0.gif"`,
		`src="/previews/video_1/10.gif"`,
		`<option value="fall" selected>fall</option>`,
		"1 / 6 labeled",
		"clip has no slot in the annotation index",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("gallery missing %q", want)
		}
	}
}

func TestGallery_NotInitialized(t *testing.T) {
	env := newTestEnv(t, false)
	rr := env.do(t, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "No annotation index yet") {
		t.Error("gallery should explain that the index is missing")
	}
}

func TestGallery_UnknownVideo(t *testing.T) {
	env := newTestEnv(t, true)
	rr := env.do(t, http.MethodGet, "/?video=ghost.mp4", "")
	if !strings.Contains(rr.Body.String(), "Video not found in index: ghost.mp4") {
		t.Error("gallery should report the unknown video")
	}
}

func TestExportHandler(t *testing.T) {
	env := newTestEnv(t, true)
	if err := env.svc.Update(context.Background(), "video_1.mp4", env.cfg.Labels, "run", 1); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, http.MethodPost, "/api/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var resp export.ExportResponse
	decode(t, rr, &resp)
	if resp.RowCount != 1 {
		t.Errorf("row_count = %d, want 1", resp.RowCount)
	}

	data, err := os.ReadFile(filepath.Join(env.exportDir, export.CSVFilename))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "video_1.mp4,run\n" {
		t.Errorf("csv = %q", data)
	}
}

func TestExportHandler_BadRequests(t *testing.T) {
	env := newTestEnv(t, true)

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"traversal", `{"output_dir":"../escape"}`},
		{"unclean", `{"output_dir":"out/./x"}`},
		{"not a directory", `{"output_dir":"` + filepath.ToSlash(file) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/export", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
		})
	}
}

func TestExportHandler_NotInitialized(t *testing.T) {
	env := newTestEnv(t, false)
	body, _ := json.Marshal(export.ExportRequest{OutputDir: filepath.Join(t.TempDir(), "out")})
	req := httptest.NewRequest(http.MethodPost, "/api/export", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
