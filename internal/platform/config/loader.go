package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "vitalsense/internal/platform/errors"
)

// Loader reads configuration from an optional yaml file layered over defaults.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader with .env overlay enabled.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the configuration file path instead of probing defaults.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration. A missing config file is not an
// error: defaults apply. A present but malformed file is.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	candidates := []string{l.path}
	if l.path == "" {
		candidates = []string{os.Getenv("VITALSENSE_CONFIG"), "config.yaml", "configs/config.yaml"}
	}

	for _, path := range candidates {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if l.path != "" {
				return nil, platformerrors.Wrap(platformerrors.KindConfig, "config load", "read config file", err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config load", "parse config file", err)
		}
		if err := l.validate(cfg); err != nil {
			return nil, err
		}
		return &Result{Config: cfg, Path: path}, nil
	}

	return &Result{Config: cfg, Path: ""}, nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Video.TargetRateHz <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config validate", "video target rate must be positive")
	}
	if cfg.Video.BufferCapacity <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config validate", "video buffer capacity must be positive")
	}
	if cfg.Video.ROIFraction <= 0 || cfg.Video.ROIFraction > 1 {
		return platformerrors.New(platformerrors.KindConfig, "config validate", "roi fraction must be in (0,1]")
	}
	if cfg.Audio.NominalSampleRate <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config validate", "audio sample rate must be positive")
	}
	if cfg.Heart.BandLowHz <= 0 || cfg.Heart.BandHighHz <= cfg.Heart.BandLowHz {
		return platformerrors.New(platformerrors.KindConfig, "config validate", "heart band edges must satisfy 0 < low < high")
	}
	if cfg.Session.FaceTimeout <= 0 || cfg.Session.VoiceTimeout <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config validate", "capture timeouts must be positive")
	}
	return nil
}
