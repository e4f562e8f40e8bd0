package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Upload    UploadConfig    `yaml:"upload"`
	Detector  DetectorConfig  `yaml:"detector"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Database  DatabaseConfig  `yaml:"database"`
	Retention RetentionConfig `yaml:"retention"`
	Preview   PreviewConfig   `yaml:"preview"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// StorageConfig names the directories served under /uploads and /result.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir"`
	ResultDir string `yaml:"result_dir"`
}

// UploadConfig limits what /upload accepts.
type UploadConfig struct {
	MaxSizeMB         int64    `yaml:"max_size_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxConcurrent     int      `yaml:"max_concurrent"` // concurrent detections (default: 2)
}

// DetectorConfig describes how to invoke the detection script.
type DetectorConfig struct {
	Python  string        `yaml:"python"`
	Script  string        `yaml:"script"`
	Weights string        `yaml:"weights"`
	Conf    float64       `yaml:"conf"`
	Device  string        `yaml:"device"`
	RunsDir string        `yaml:"runs_dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// EncoderConfig describes how to invoke ffmpeg.
type EncoderConfig struct {
	FFmpeg     string        `yaml:"ffmpeg"`
	VideoCodec string        `yaml:"video_codec"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds database connection settings. Job history is kept in
// memory when URL is empty.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RetentionConfig controls the periodic sweep of uploads and results.
type RetentionConfig struct {
	Schedule string        `yaml:"schedule"` // cron expression
	MaxAge   time.Duration `yaml:"max_age"`  // 0 disables the sweep
}

// PreviewConfig holds settings for image previews.
type PreviewConfig struct {
	MaxSizeMB    int64 `yaml:"max_size_mb"`
	DiscardStale bool  `yaml:"discard_stale"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      8000,
			StaticDir: "web/static",
		},
		Storage: StorageConfig{
			UploadDir: "uploads",
			ResultDir: "result",
		},
		Upload: UploadConfig{
			MaxSizeMB:         500,
			AllowedExtensions: []string{".mp4", ".avi", ".mov", ".mkv"},
			MaxConcurrent:     2,
		},
		Detector: DetectorConfig{
			Python:  "python",
			Script:  "yolov9/anpromax.py",
			Weights: "yolov9/runs/train/exp/weights/best.pt",
			Conf:    0.1,
			Device:  "cpu",
			RunsDir: "yolov9/runs/detect",
			Timeout: 30 * time.Minute,
		},
		Encoder: EncoderConfig{
			FFmpeg:     "ffmpeg",
			VideoCodec: "libx264",
			Timeout:    10 * time.Minute,
		},
		Retention: RetentionConfig{
			Schedule: "@hourly",
		},
		Preview: PreviewConfig{
			MaxSizeMB: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
// Environment overrides are applied on top of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads ".env" if present, then tries "config.yaml" from the
// current directory. If the file does not exist, it returns sensible
// defaults with environment overrides applied.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile behaves like LoadDefault for an explicit path.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: could not load .env", "err", err)
	}

	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	if c.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("config: upload.max_size_mb must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("config: upload.allowed_extensions must not be empty")
	}
	for i, ext := range c.Upload.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Upload.AllowedExtensions[i] = ext
	}
	if c.Upload.MaxConcurrent <= 0 {
		c.Upload.MaxConcurrent = 1
	}
	if c.Retention.MaxAge < 0 {
		return fmt.Errorf("config: retention.max_age must not be negative")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

const envPrefix = "PLATESCAN_"

// applyEnv overrides fields from PLATESCAN_* environment variables.
func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("HOST", &c.Server.Host)
	integer("PORT", &c.Server.Port)
	str("STATIC_DIR", &c.Server.StaticDir)
	str("UPLOAD_DIR", &c.Storage.UploadDir)
	str("RESULT_DIR", &c.Storage.ResultDir)
	str("PYTHON", &c.Detector.Python)
	str("DETECT_SCRIPT", &c.Detector.Script)
	str("DETECT_WEIGHTS", &c.Detector.Weights)
	str("DETECT_DEVICE", &c.Detector.Device)
	str("DETECT_RUNS_DIR", &c.Detector.RunsDir)
	str("FFMPEG", &c.Encoder.FFmpeg)
	str("DATABASE_URL", &c.Database.URL)
	duration("RETENTION_MAX_AGE", &c.Retention.MaxAge)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}
