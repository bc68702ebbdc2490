package config

import "time"

// DefaultConfig returns the built-in configuration. Values here double as the
// documented calibration constants for the analysis pipeline.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "vitalsense.log",
		},
		Video: VideoConfig{
			TargetRateHz:   10,
			BufferCapacity: 300, // 30 s at 10 Hz
			ROIFraction:    0.4,
		},
		Audio: AudioConfig{
			NominalSampleRate: 44100,
			BufferSeconds:     5,
		},
		Session: SessionConfig{
			FaceTimeout:       Duration(30 * time.Second),
			FaceSampleTarget:  300,
			VoiceTimeout:      Duration(5 * time.Second),
			VoiceSampleTarget: 5 * 44100,
		},
		Heart: HeartConfig{
			BandLowHz:      0.7, // 42 BPM
			BandHighHz:     4.0, // 240 BPM
			MinSamples:     20,  // 2 s at 10 Hz
			ConfidenceKnee: 10000, // spectral SNR at which confidence saturates
		},
		Voice: VoiceConfig{
			FrameMs:         40,
			HopMs:           20,
			PitchLowHz:      60,
			PitchHighHz:     400,
			VoicingMinCorr:  0.30,
			SilenceRMSFloor: 1e-4,
		},
		Store: StoreConfig{
			Enabled: false,
			DSN:     "data/measurements.db",
		},
	}
}
