package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/annotation"
)

const defaultRefreshInterval = 5 * time.Second

// IndexSource is read to show labeling progress.
type IndexSource interface {
	Index(ctx context.Context) (*annotation.Index, error)
}

type Tray struct {
	index    IndexSource
	addr     string
	logger   *slog.Logger
	interval time.Duration

	statusItem   *systray.MenuItem
	progressItem *systray.MenuItem

	mu   sync.Mutex
	stop chan struct{}

	onOpen func() error
	onQuit func()
}

type TrayConfig struct {
	Index           IndexSource
	Addr            string
	Logger          *slog.Logger
	RefreshInterval time.Duration
	OnOpen          func() error
	OnQuit          func()
}

func NewTray(cfg TrayConfig) *Tray {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Tray{
		index:    cfg.Index,
		addr:     cfg.Addr,
		logger:   cfg.Logger,
		interval: interval,
		stop:     make(chan struct{}),
		onOpen:   cfg.OnOpen,
		onQuit:   cfg.OnQuit,
	}
}

// Run blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("pipe-label")
	systray.SetTooltip("pipe-label review server")

	t.statusItem = systray.AddMenuItem("Serving: "+t.addr, "Review server address")
	t.statusItem.Disable()

	t.progressItem = systray.AddMenuItem(ProgressTitle(0, 0), "Labeled clips")
	t.progressItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open in Browser", "Open the review page")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Stop the review server")

	t.refresh()
	ticker := time.NewTicker(t.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-openItem.ClickedCh:
				t.handleOpen()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.stop:
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh() {
	if t.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ix, err := t.index.Index(ctx)
	if err != nil {
		if !annotation.IsNotInitialized(err) {
			t.logger.Warn("failed to read labeling progress", "error", err)
		}
		t.UpdateProgress(0, 0)
		return
	}
	t.UpdateProgress(ix.Progress())
}

func (t *Tray) handleOpen() {
	if t.onOpen != nil {
		if err := t.onOpen(); err != nil {
			t.logger.Error("failed to open browser", "error", err)
		}
	}
}

func (t *Tray) UpdateProgress(labeled, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.progressItem != nil {
		t.progressItem.SetTitle(ProgressTitle(labeled, total))
	}
}

// Quit stops the refresh loop and removes the tray icon.
func (t *Tray) Quit() {
	t.mu.Lock()
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	t.mu.Unlock()
	systray.Quit()
}

func ProgressTitle(labeled, total int) string {
	if total == 0 {
		return "Labeled: -"
	}
	return fmt.Sprintf("Labeled: %d/%d (%d%%)", labeled, total, labeled*100/total)
}
