package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/api"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/catalog"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/config"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/export"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/labelmap"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/logging"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/playback"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/ui"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review UI for labeling clips",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := fromContext(cmd)
		cfg := a.cfg
		logger := a.logger
		startTime := time.Now()

		printBanner(os.Stdout, "serve", append(dirArgs(cfg),
			arg{"url", "http://" + cfg.Addr() + "/"},
			arg{"tray", cfg.Tray},
		))

		labels, err := labelmap.Load(cfg.LabelMapPath)
		if err != nil {
			return err
		}

		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		svc := annotation.NewService(store, logging.WithComponent(logger, "annotation"))

		apiServer := api.NewServer(api.ServerConfig{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Annotations: svc,
			Labels:      labels,
			Exporter:    export.New(svc, labels, catalog.DefaultClipExt, logging.WithComponent(logger, "export")),
			ExportDir:   cfg.OutputDir,
			Previews:    playback.NewServer(cfg.ClipDir, logging.WithComponent(logger, "playback")),
			ClipDir:     cfg.ClipDir,
			PreviewExt:  catalog.DefaultPreviewExt,
			StoreName:   cfg.Store,
			Version:     config.Version,
			Logger:      logging.WithComponent(logger, "api"),
			StartTime:   startTime,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- apiServer.Start()
		}()

		quitCh := make(chan struct{})

		if cfg.Tray {
			tray := ui.NewTray(ui.TrayConfig{
				Index:  svc,
				Addr:   apiServer.Addr(),
				Logger: logging.WithComponent(logger, "tray"),
				OnOpen: func() error {
					return openBrowser(apiServer.URL())
				},
				OnQuit: func() {
					close(quitCh)
				},
			})
			go tray.Run()
			defer tray.Quit()
		} else {
			logger.Info("running without system tray")
		}

		select {
		case <-cmd.Context().Done():
			logger.Info("received shutdown signal")
		case <-quitCh:
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		}

		logger.Info("initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func init() {
	fs := serveCmd.Flags()
	addDirFlags(fs)
	fs.String("host", config.DefaultHost, "listen address")
	fs.Int("port", config.DefaultPort, "listen port")
	fs.Bool("tray", false, "show a system tray icon")
}
