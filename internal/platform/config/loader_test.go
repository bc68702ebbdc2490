package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
log:
  log_level: "debug"
  log_dir: "/tmp/logs"
  log_file: "test.log"
video:
  target_rate_hz: 15
  buffer_capacity: 450
session:
  face_timeout: 20s
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	loader := NewLoader().WithDotEnv(false).WithPath(configFile)
	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg := res.Config
	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Video.TargetRateHz != 15 {
		t.Errorf("expected target rate 15, got %v", cfg.Video.TargetRateHz)
	}
	if cfg.Video.BufferCapacity != 450 {
		t.Errorf("expected buffer capacity 450, got %d", cfg.Video.BufferCapacity)
	}
	if cfg.Session.FaceTimeout.Std() != 20*time.Second {
		t.Errorf("expected face timeout 20s, got %v", cfg.Session.FaceTimeout)
	}
	// untouched fields keep defaults
	if cfg.Heart.BandLowHz != 0.7 {
		t.Errorf("expected default band low 0.7, got %v", cfg.Heart.BandLowHz)
	}
}

func TestLoader_LoadDefaults(t *testing.T) {
	loader := NewLoader().WithDotEnv(false).WithPath("")
	oldWd, _ := os.Getwd()
	os.Chdir(t.TempDir())
	defer os.Chdir(oldWd)
	os.Unsetenv("VITALSENSE_CONFIG")

	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if res.Path != "" {
		t.Errorf("expected no config path, got %s", res.Path)
	}
	if res.Config.Session.FaceSampleTarget != 300 {
		t.Errorf("expected default face sample target 300, got %d", res.Config.Session.FaceSampleTarget)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero video rate",
			mutate:  func(c *Config) { c.Video.TargetRateHz = 0 },
			wantErr: true,
		},
		{
			name:    "inverted heart band",
			mutate:  func(c *Config) { c.Heart.BandLowHz, c.Heart.BandHighHz = 4.0, 0.7 },
			wantErr: true,
		},
		{
			name:    "roi fraction above one",
			mutate:  func(c *Config) { c.Video.ROIFraction = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero voice timeout",
			mutate:  func(c *Config) { c.Session.VoiceTimeout = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
