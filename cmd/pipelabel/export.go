package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/config"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/export"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/labelmap"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/logging"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write label.csv and a copy of the label map",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := fromContext(cmd)
		cfg := a.cfg

		printBanner(os.Stdout, "export", []arg{
			{"output dir", cfg.OutputDir},
			{"label map", cfg.LabelMapPath},
			{"index", indexLocation(cfg)},
			{"store", cfg.Store},
		})

		labels, err := labelmap.Load(cfg.LabelMapPath)
		if err != nil {
			return err
		}

		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		svc := annotation.NewService(store, logging.WithComponent(a.logger, "annotation"))
		exp := export.New(svc, labels, catalog.DefaultClipExt, logging.WithComponent(a.logger, "export"))

		resp, err := exp.Export(cmd.Context(), cfg.OutputDir)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d rows to %s (skipped %d unlabeled, %d without a clip).\n",
			resp.RowCount, resp.OutputPath, resp.SkippedUnlabeled, resp.SkippedTrailing)
		return nil
	},
}

func indexLocation(cfg *config.Config) string {
	if cfg.Store == config.StoreSQLite {
		return cfg.DBPath()
	}
	return cfg.IndexPath()
}

func init() {
	fs := exportCmd.Flags()
	fs.String("data-dir", config.DefaultDataDir, "directory holding the annotation index")
	fs.String("output-dir", config.DefaultOutputDir, "directory for label.csv and label_map.txt")
	fs.String("label-map", config.DefaultLabelMapPath, "label map file, one label per line")
	fs.String("label", "", "annotation index file (default: <data-dir>/output_data.json)")
}
