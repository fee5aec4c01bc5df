// Package config provides configuration management for pipe-label.
// Values are layered: defaults, then an optional YAML file, then
// PIPELABEL_* environment variables. Command-line flags are applied last by
// the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultDataDir      = "data"
	DefaultVideoDir     = "data/videos"
	DefaultClipDir      = "data/clips"
	DefaultOutputDir    = "data/output"
	DefaultLabelMapPath = "data/label_map.txt"
	DefaultClipSize     = 30
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 8501
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultStore        = StoreJSON
	DefaultVideoBackend = "ffmpeg"
	DefaultFFmpegCodec  = "mpeg4"

	StoreJSON   = "json"
	StoreSQLite = "sqlite"

	EnvPrefix = "PIPELABEL_"

	IndexFilename = "output_data.json"
	DBFilename    = "pipelabel.db"
)

// Config holds all application configuration.
type Config struct {
	DataDir      string `yaml:"data_dir" env:"DATA_DIR"`
	VideoDir     string `yaml:"video_dir" env:"VIDEO_DIR"`
	ClipDir      string `yaml:"clip_dir" env:"CLIP_DIR"`
	OutputDir    string `yaml:"output_dir" env:"OUTPUT_DIR"`
	LabelMapPath string `yaml:"label_map_path" env:"LABEL_MAP_PATH"`
	// IndexFile overrides <data_dir>/output_data.json.
	IndexFile string `yaml:"index_file" env:"INDEX_FILE"`
	ClipSize  int    `yaml:"clip_size" env:"CLIP_SIZE"`

	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
	Tray bool   `yaml:"tray" env:"TRAY"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	Store           string `yaml:"store" env:"STORE"`
	VideoBackend    string `yaml:"video_backend" env:"VIDEO_BACKEND"`
	FFmpegCodec     string `yaml:"ffmpeg_codec" env:"FFMPEG_CODEC"`
	FFmpegThreads   int    `yaml:"ffmpeg_threads" env:"FFMPEG_THREADS"`
	PreviewMaxWidth int    `yaml:"preview_max_width" env:"PREVIEW_MAX_WIDTH"`
}

func Default() *Config {
	return &Config{
		DataDir:      DefaultDataDir,
		VideoDir:     DefaultVideoDir,
		ClipDir:      DefaultClipDir,
		OutputDir:    DefaultOutputDir,
		LabelMapPath: DefaultLabelMapPath,
		ClipSize:     DefaultClipSize,
		Host:         DefaultHost,
		Port:         DefaultPort,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		Store:        DefaultStore,
		VideoBackend: DefaultVideoBackend,
		FFmpegCodec:  DefaultFFmpegCodec,
	}
}

// Load builds a Config from defaults, the YAML file at path (or the first
// default location found when path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) || explicit {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	candidates := []string{
		"./pipelabel.yaml",
		"./pipelabel.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".pipelabel", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.ClipSize < 1 {
		return fmt.Errorf("invalid clip_size %d: must be at least 1", c.ClipSize)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: port must be between 1 and 65535", c.Port)
	}
	switch c.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("invalid store %q: must be %s or %s", c.Store, StoreJSON, StoreSQLite)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q: must be json or text", c.LogFormat)
	}
	if c.VideoBackend == "" {
		return fmt.Errorf("video_backend is required")
	}
	if c.PreviewMaxWidth < 0 {
		return fmt.Errorf("invalid preview_max_width %d", c.PreviewMaxWidth)
	}
	return nil
}

// IndexPath returns the annotation index JSON file path.
func (c *Config) IndexPath() string {
	if c.IndexFile != "" {
		return c.IndexFile
	}
	return filepath.Join(c.DataDir, IndexFilename)
}

// DBPath returns the full path to the SQLite database file
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFilename)
}

// Addr returns the review server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
