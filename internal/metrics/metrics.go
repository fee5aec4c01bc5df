package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClipsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipelabel_clips_written_total",
		Help: "Total number of clip files written by the segmenter",
	})

	PreviewsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipelabel_previews_written_total",
		Help: "Total number of preview animations written by the segmenter",
	})

	FramesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipelabel_frames_read_total",
		Help: "Total number of source frames decoded during segmentation",
	})

	SegmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipelabel_segment_duration_seconds",
		Help:    "Duration of segmentation per video",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"backend"})

	LabelUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipelabel_label_updates_total",
		Help: "Total number of label updates, by result",
	}, []string{"result"})

	ExportRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipelabel_export_rows_total",
		Help: "Total number of CSV rows written by the exporter",
	})
)
