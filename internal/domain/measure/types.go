package measure

import "time"

// Quality grades a result by how trustworthy its signal was.
type Quality string

const (
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

// Confidence thresholds for quality grading.
const (
	ExcellentConfidence = 0.85
	GoodConfidence      = 0.65
	FairConfidence      = 0.40
)

// QualityFromConfidence maps a confidence score onto the quality scale.
func QualityFromConfidence(confidence float64) Quality {
	switch {
	case confidence >= ExcellentConfidence:
		return QualityExcellent
	case confidence >= GoodConfidence:
		return QualityGood
	case confidence >= FairConfidence:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Clamp01 bounds v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// HeartSignalResult is the outcome of one face-capture analysis. Produced
// at most once per capture window; immutable after creation.
type HeartSignalResult struct {
	HeartRateBPM           float64   `json:"heart_rate_bpm"`
	HeartRateVariabilityMs float64   `json:"heart_rate_variability_ms"`
	StressIndex            float64   `json:"stress_index"`
	Confidence             float64   `json:"confidence"`
	Quality                Quality   `json:"quality"`
	DominantFrequencyHz    float64   `json:"dominant_frequency_hz"`
	SignalToNoiseRatio     float64   `json:"signal_to_noise_ratio"`
	SampleCount            int       `json:"sample_count"`
	CapturedAt             time.Time `json:"captured_at"`
}

// VoiceSignalResult is the outcome of one voice-capture analysis. Same
// single-production lifecycle as HeartSignalResult.
type VoiceSignalResult struct {
	PitchHz                float64   `json:"pitch_hz"`
	JitterRatio            float64   `json:"jitter_ratio"`
	ShimmerRatio           float64   `json:"shimmer_ratio"`
	HarmonicToNoiseRatioDb float64   `json:"harmonic_to_noise_ratio_db"`
	Clarity                float64   `json:"clarity"`
	StressLevel            float64   `json:"stress_level"`
	Confidence             float64   `json:"confidence"`
	Quality                Quality   `json:"quality"`
	CapturedAt             time.Time `json:"captured_at"`
}
