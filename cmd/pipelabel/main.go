package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/config"
	"github.com/dgu-next-gen-cctv/pipe-label/internal/logging"
)

var cfgFile string

type appKey struct{}

// app is what every subcommand receives after config and logging are set up.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pipelabel",
	Short:         "pipelabel - video clip labeling workflow",
	Long:          "Cut videos into fixed-size clips, review previews in the browser, label each clip and export the labels to CSV.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd.Flags(), cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{cfg: cfg, logger: logger}))
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./pipelabel.yaml)")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", config.DefaultLogFormat, "log format: text or json")
	pf.String("store", config.DefaultStore, "annotation store: json or sqlite")
	pf.String("backend", config.DefaultVideoBackend, "video backend")

	rootCmd.AddCommand(segmentCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func fromContext(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("pipelabel %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
		return nil
	},
}

func addDirFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", config.DefaultDataDir, "directory holding the annotation index")
	fs.String("video-dir", config.DefaultVideoDir, "directory of source videos")
	fs.String("clip-dir", config.DefaultClipDir, "directory of preview animations")
	fs.String("output-dir", config.DefaultOutputDir, "directory for clip files and exports")
	fs.String("label-map", config.DefaultLabelMapPath, "label map file, one label per line")
	fs.Int("clip-size", config.DefaultClipSize, "frames per clip")
}

// applyFlags copies flags set on the command line over cfg. Flags left at
// their defaults do not override the file or environment.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	strs := map[string]*string{
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"store":      &cfg.Store,
		"backend":    &cfg.VideoBackend,
		"data-dir":   &cfg.DataDir,
		"video-dir":  &cfg.VideoDir,
		"clip-dir":   &cfg.ClipDir,
		"output-dir": &cfg.OutputDir,
		"label-map":  &cfg.LabelMapPath,
		"label":      &cfg.IndexFile,
		"host":       &cfg.Host,
	}
	for name, dst := range strs {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetString(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	ints := map[string]*int{
		"clip-size": &cfg.ClipSize,
		"port":      &cfg.Port,
	}
	for name, dst := range ints {
		if f := fs.Lookup(name); f != nil && f.Changed {
			v, err := fs.GetInt(name)
			if err != nil {
				return err
			}
			*dst = v
		}
	}

	if f := fs.Lookup("tray"); f != nil && f.Changed {
		v, err := fs.GetBool("tray")
		if err != nil {
			return err
		}
		cfg.Tray = v
	}
	return nil
}
