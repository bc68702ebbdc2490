package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml config can say "30s" or "500ms".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Video   VideoConfig   `yaml:"video"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Heart   HeartConfig   `yaml:"heart"`
	Voice   VoiceConfig   `yaml:"voice"`
	Store   StoreConfig   `yaml:"store"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// VideoConfig controls face-capture sampling.
type VideoConfig struct {
	TargetRateHz   float64 `yaml:"target_rate_hz"`
	BufferCapacity int     `yaml:"buffer_capacity"`
	ROIFraction    float64 `yaml:"roi_fraction"`
}

// AudioConfig controls voice-capture sampling.
type AudioConfig struct {
	NominalSampleRate int `yaml:"nominal_sample_rate"`
	BufferSeconds     int `yaml:"buffer_seconds"`
}

// SessionConfig controls capture phase targets and timeouts.
type SessionConfig struct {
	FaceTimeout       Duration `yaml:"face_timeout"`
	FaceSampleTarget  int      `yaml:"face_sample_target"`
	VoiceTimeout      Duration `yaml:"voice_timeout"`
	VoiceSampleTarget int      `yaml:"voice_sample_target"`
}

// HeartConfig holds the spectral analysis band and confidence calibration.
type HeartConfig struct {
	BandLowHz      float64 `yaml:"band_low_hz"`
	BandHighHz     float64 `yaml:"band_high_hz"`
	MinSamples     int     `yaml:"min_samples"`
	ConfidenceKnee float64 `yaml:"confidence_knee"`
}

// VoiceConfig holds acoustic analysis framing and pitch search range.
type VoiceConfig struct {
	FrameMs         int     `yaml:"frame_ms"`
	HopMs           int     `yaml:"hop_ms"`
	PitchLowHz      float64 `yaml:"pitch_low_hz"`
	PitchHighHz     float64 `yaml:"pitch_high_hz"`
	VoicingMinCorr  float64 `yaml:"voicing_min_corr"`
	SilenceRMSFloor float64 `yaml:"silence_rms_floor"`
}

// StoreConfig configures the caller-side measurement history database.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}
