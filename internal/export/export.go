// Package export writes the labeled clips of an annotation index as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/apperr"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/labelmap"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/metrics"
)

const (
	CSVFilename      = "label.csv"
	LabelMapFilename = "label_map.txt"
)

var ErrUnknownLabelValue = fmt.Errorf("stored label value is not in the label map: %w", apperr.ErrInvalidState)

type IndexLoader interface {
	Index(ctx context.Context) (*annotation.Index, error)
}

type Exporter struct {
	index   IndexLoader
	labels  *labelmap.LabelMap
	clipExt string
	logger  *slog.Logger
}

func New(index IndexLoader, labels *labelmap.LabelMap, clipExt string, logger *slog.Logger) *Exporter {
	if clipExt == "" {
		clipExt = catalog.DefaultClipExt
	}
	return &Exporter{index: index, labels: labels, clipExt: clipExt, logger: logger}
}

// Rows lists labeled clips in video order, then clip order. Slots with no
// emitted clip file and unlabeled slots are skipped and counted.
func (e *Exporter) Rows(ix *annotation.Index) (rows []Row, unlabeled, trailing int, err error) {
	for _, entry := range ix.LabelList {
		stem := catalog.Stem(entry.VideoName)
		clips := annotation.ClipCount(entry.TotalFrames, ix.ClipSize)

		for i, value := range entry.Labels {
			if i >= clips {
				trailing++
				continue
			}
			if value == annotation.Unlabeled {
				unlabeled++
				continue
			}
			name, ok := e.labels.Name(value)
			if !ok {
				return nil, 0, 0, fmt.Errorf("%w: %d at %s clip %d", ErrUnknownLabelValue, value, entry.VideoName, i)
			}
			rows = append(rows, Row{
				Clip:  catalog.ClipFilename(stem, i, e.clipExt),
				Label: name,
			})
		}
	}
	return rows, unlabeled, trailing, nil
}

// Export writes <outputDir>/label.csv and copies the label map next to it.
func (e *Exporter) Export(ctx context.Context, outputDir string) (*ExportResponse, error) {
	ix, err := e.index.Index(ctx)
	if err != nil {
		return nil, err
	}

	rows, unlabeled, trailing, err := e.Rows(ix)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	csvPath := filepath.Join(outputDir, CSVFilename)
	if err := writeCSV(csvPath, rows); err != nil {
		return nil, err
	}

	mapPath := filepath.Join(outputDir, LabelMapFilename)
	if err := copyFile(e.labels.Path(), mapPath); err != nil {
		return nil, fmt.Errorf("failed to copy label map: %w", err)
	}

	metrics.ExportRowsTotal.Add(float64(len(rows)))
	if e.logger != nil {
		e.logger.Info("labels exported",
			"output", csvPath, "rows", len(rows),
			"skipped_unlabeled", unlabeled, "skipped_trailing", trailing)
	}

	return &ExportResponse{
		Status:           "ok",
		OutputPath:       csvPath,
		LabelMapPath:     mapPath,
		RowCount:         len(rows),
		SkippedUnlabeled: unlabeled,
		SkippedTrailing:  trailing,
	}, nil
}

func writeCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, r := range rows {
		if err := w.Write([]string{r.Clip, r.Label}); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	if src == "" {
		return fmt.Errorf("label map has no source file")
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
