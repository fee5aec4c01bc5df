package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the annotation index with every clip unlabeled",
	Long:  "Initialize the annotation index with every clip unlabeled. An existing index is replaced.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := fromContext(cmd)
		cfg := a.cfg

		printBanner(os.Stdout, "init", dirArgs(cfg))

		videos, err := catalog.ListVideos(cfg.VideoDir)
		if err != nil {
			return err
		}

		backend, err := a.backend()
		if err != nil {
			return err
		}

		ix, err := a.initializeIndex(cmd.Context(), backend, videos)
		if err != nil {
			return err
		}

		_, slots := ix.Progress()
		fmt.Printf("Initialized index for %d videos (%d slots, clip size %d).\n", len(ix.VideoList), slots, ix.ClipSize)
		return nil
	},
}

func init() {
	addDirFlags(initCmd.Flags())
}
