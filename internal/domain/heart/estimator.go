package heart

import (
	"math"

	"vitalsense/internal/domain/measure"
	"vitalsense/internal/domain/signal"
	platformerrors "vitalsense/internal/platform/errors"
)

// Config holds the spectral analysis band and calibration constants.
type Config struct {
	BandLowHz      float64 // lower edge of the physiological band, default 0.7 (42 BPM)
	BandHighHz     float64 // upper edge, default 4.0 (240 BPM)
	MinSamples     int     // below this the result is graded Poor outright
	ConfidenceKnee float64 // SNR at which confidence saturates to 1.0
}

// DefaultConfig returns the documented calibration defaults.
func DefaultConfig() Config {
	return Config{
		BandLowHz:      0.7,
		BandHighHz:     4.0,
		MinSamples:     20,
		ConfidenceKnee: 10000,
	}
}

// Estimator locates the dominant cardiac frequency in the green-channel
// rPPG series and grades the estimate by spectral signal-to-noise ratio.
type Estimator struct {
	cfg Config
}

// NewEstimator creates an estimator, filling zero config fields with defaults.
func NewEstimator(cfg Config) *Estimator {
	def := DefaultConfig()
	if cfg.BandLowHz <= 0 {
		cfg.BandLowHz = def.BandLowHz
	}
	if cfg.BandHighHz <= cfg.BandLowHz {
		cfg.BandHighHz = def.BandHighHz
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.ConfidenceKnee <= 0 {
		cfg.ConfidenceKnee = def.ConfidenceKnee
	}
	return &Estimator{cfg: cfg}
}

// Analyze runs the full estimation pipeline on a buffer snapshot. An empty
// snapshot is an error; anything else produces a result, graded Poor when
// the data cannot support a confident estimate.
func (e *Estimator) Analyze(samples []signal.RGBSample) (measure.HeartSignalResult, error) {
	if len(samples) == 0 {
		return measure.HeartSignalResult{}, platformerrors.New(
			platformerrors.KindData, "heart analysis", "empty signal buffer")
	}

	capturedAt := samples[len(samples)-1].Timestamp
	green := make([]float64, 0, len(samples))
	for _, s := range samples {
		v := s.Value.G
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		green = append(green, v)
	}

	poor := func() measure.HeartSignalResult {
		return measure.HeartSignalResult{
			StressIndex: NeutralStressIndex,
			Confidence:  0,
			Quality:     measure.QualityPoor,
			SampleCount: len(samples),
			CapturedAt:  capturedAt,
		}
	}

	if len(green) < 4 {
		return poor(), nil
	}

	sampleRate := effectiveRate(samples)
	if sampleRate <= 0 {
		return poor(), nil
	}

	series := detrend(green)
	if isDegenerate(series) {
		return poor(), nil
	}

	power, binHz := powerSpectrum(hann(series), sampleRate)
	idx, peakHz, peakPower := peakInBand(power, binHz, e.cfg.BandLowHz, e.cfg.BandHighHz)
	if idx < 0 || peakPower <= 0 {
		return poor(), nil
	}

	snr := peakPower / meanPowerOutsideBand(power, binHz, e.cfg.BandLowHz, e.cfg.BandHighHz)
	confidence := measure.Clamp01(math.Log1p(snr) / math.Log1p(e.cfg.ConfidenceKnee))
	if len(green) < e.cfg.MinSamples {
		// under one full cardiac cycle of context: keep the estimate but
		// grade it untrustworthy
		if confidence > 0.05 {
			confidence = 0.05
		}
	}

	filtered := bandpass(series, sampleRate, e.cfg.BandLowHz, e.cfg.BandHighHz)
	hrvMs, stressIdx := stressFromFiltered(filtered, power, binHz, sampleRate)

	return measure.HeartSignalResult{
		HeartRateBPM:           peakHz * 60,
		HeartRateVariabilityMs: hrvMs,
		StressIndex:            stressIdx,
		Confidence:             confidence,
		Quality:                measure.QualityFromConfidence(confidence),
		DominantFrequencyHz:    peakHz,
		SignalToNoiseRatio:     snr,
		SampleCount:            len(samples),
		CapturedAt:             capturedAt,
	}, nil
}

// effectiveRate derives the actual sampling rate from snapshot timestamps.
func effectiveRate(samples []signal.RGBSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	span := samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp)
	if span <= 0 {
		return 0
	}
	return float64(len(samples)-1) / span.Seconds()
}

// isDegenerate reports a flat or effectively constant series.
func isDegenerate(x []float64) bool {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum/float64(len(x)) < 1e-12
}

// meanPowerOutsideBand averages spectral power over bins outside the
// physiological band, excluding the DC bin. Returns a small floor rather
// than zero so the SNR ratio stays finite.
func meanPowerOutsideBand(power []float64, binHz, lowHz, highHz float64) float64 {
	var sum float64
	var n int
	for i := 1; i < len(power); i++ {
		f := float64(i) * binHz
		if f >= lowHz && f <= highHz {
			continue
		}
		sum += power[i]
		n++
	}
	if n == 0 || sum <= 0 {
		return 1e-12
	}
	return sum / float64(n)
}
