package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/logging"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/segment"
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Cut videos into clips and previews, then initialize the annotation index",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := fromContext(cmd)
		cfg := a.cfg
		noProgress, _ := cmd.Flags().GetBool("no-progress")

		printBanner(os.Stdout, "segment", append(dirArgs(cfg), arg{"backend", cfg.VideoBackend}))

		videos, err := catalog.ListVideos(cfg.VideoDir)
		if err != nil {
			return err
		}

		backend, err := a.backend()
		if err != nil {
			return err
		}

		var progress io.Writer
		if !noProgress && logging.IsTerminal(os.Stderr) {
			progress = os.Stderr
		}

		seg := segment.New(backend, logging.WithComponent(a.logger, "segment"), segment.Options{
			ClipSize:        cfg.ClipSize,
			ClipExt:         catalog.DefaultClipExt,
			PreviewMaxWidth: cfg.PreviewMaxWidth,
			Progress:        progress,
		})

		results, err := seg.Run(cmd.Context(), videos, cfg.ClipDir, cfg.OutputDir)
		if err != nil {
			return err
		}

		clips := 0
		for _, r := range results {
			clips += len(r.Clips)
		}

		ix, err := a.initializeIndex(cmd.Context(), backend, videos)
		if err != nil {
			return err
		}

		_, slots := ix.Progress()
		fmt.Printf("Segmented %d videos into %d clips; index has %d slots.\n", len(results), clips, slots)
		return nil
	},
}

func init() {
	addDirFlags(segmentCmd.Flags())
	segmentCmd.Flags().Bool("no-progress", false, "disable the progress bar")
}
