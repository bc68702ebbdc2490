package voice

import (
	"math"
	"time"

	"vitalsense/internal/domain/measure"
	"vitalsense/internal/domain/signal"
	platformerrors "vitalsense/internal/platform/errors"
)

// Config tunes the acoustic feature extraction.
type Config struct {
	NominalSampleRate int     // rate the analysis constants are calibrated for
	FrameMs           int     // analysis frame length
	HopMs             int     // frame hop length
	PitchLowHz        float64 // lower bound of the pitch search range
	PitchHighHz       float64 // upper bound of the pitch search range
	VoicingMinCorr    float64 // autocorrelation peak below this is unvoiced
	SilenceRMSFloor   float64 // frame RMS below this is silence
}

// DefaultConfig covers conversational speech at the standard capture rate.
func DefaultConfig() Config {
	return Config{
		NominalSampleRate: 44100,
		FrameMs:           40,
		HopMs:             20,
		PitchLowHz:        60,
		PitchHighHz:       400,
		VoicingMinCorr:    0.30,
		SilenceRMSFloor:   1e-4,
	}
}

// Extractor computes pitch, jitter, shimmer and HNR from a PCM snapshot.
type Extractor struct {
	cfg Config
}

func NewExtractor(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.NominalSampleRate <= 0 {
		cfg.NominalSampleRate = def.NominalSampleRate
	}
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = def.FrameMs
	}
	if cfg.HopMs <= 0 {
		cfg.HopMs = def.HopMs
	}
	if cfg.PitchLowHz <= 0 {
		cfg.PitchLowHz = def.PitchLowHz
	}
	if cfg.PitchHighHz <= cfg.PitchLowHz {
		cfg.PitchHighHz = def.PitchHighHz
	}
	if cfg.VoicingMinCorr <= 0 {
		cfg.VoicingMinCorr = def.VoicingMinCorr
	}
	if cfg.SilenceRMSFloor <= 0 {
		cfg.SilenceRMSFloor = def.SilenceRMSFloor
	}
	return &Extractor{cfg: cfg}
}

// Calibration constants for the derived clarity and stress scores.
const (
	hnrSaturationDb = 25.0 // HNR at which clarity credit saturates
	stressBaseline  = 0.30
	stressJitterW   = 3.0
	stressShimmerW  = 2.0
	stressHNRW      = 0.30
	minVoicedFrames = 3
)

// Analyze extracts voice features from a buffer snapshot. The observed
// capture rate must match the configured nominal rate; the analysis
// constants are meaningless at any other rate. Silence or an unvoiced
// recording degrades to a poor-quality result rather than an error.
func (e *Extractor) Analyze(samples []signal.PCMSample, observedRate int) (measure.VoiceSignalResult, error) {
	if len(samples) == 0 {
		return measure.VoiceSignalResult{}, platformerrors.New(
			platformerrors.KindData, "voice analysis", "empty signal buffer")
	}
	if observedRate != 0 && observedRate != e.cfg.NominalSampleRate {
		return measure.VoiceSignalResult{}, platformerrors.New(
			platformerrors.KindSampleRate, "voice analysis",
			"observed sample rate does not match calibrated rate")
	}

	capturedAt := samples[len(samples)-1].Timestamp
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	x := make([]float64, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		x = append(x, s.Value)
	}

	poor := func() measure.VoiceSignalResult {
		return measure.VoiceSignalResult{
			Quality:    measure.QualityPoor,
			CapturedAt: capturedAt,
		}
	}

	rate := e.cfg.NominalSampleRate
	frameLen := rate * e.cfg.FrameMs / 1000
	hop := rate * e.cfg.HopMs / 1000
	if len(x) < frameLen {
		return poor(), nil
	}

	frames := trackPitch(x, rate, frameLen, hop,
		e.cfg.PitchLowHz, e.cfg.PitchHighHz, e.cfg.VoicingMinCorr, e.cfg.SilenceRMSFloor)

	pitchHz, voiced := medianPitch(frames)
	if voiced < minVoicedFrames || pitchHz <= 0 {
		return poor(), nil
	}

	var corrSum float64
	for _, f := range frames {
		if f.voiced {
			corrSum += f.corr
		}
	}
	meanCorr := corrSum / float64(voiced)

	jitter, shimmer := e.perturbations(x, rate, pitchHz)
	hnrDb := harmonicToNoiseDb(meanCorr)

	voicedFraction := float64(voiced) / float64(len(frames))
	confidence := measure.Clamp01(voicedFraction * meanCorr)

	clarity := measure.Clamp01(hnrDb/hnrSaturationDb) *
		(1 - math.Min(4*jitter, 0.5)) *
		(1 - math.Min(3*shimmer, 0.5))

	stress := measure.Clamp01(stressBaseline +
		stressJitterW*jitter +
		stressShimmerW*shimmer +
		stressHNRW*(1-measure.Clamp01(hnrDb/hnrSaturationDb)))

	return measure.VoiceSignalResult{
		PitchHz:                pitchHz,
		JitterRatio:            jitter,
		ShimmerRatio:           shimmer,
		HarmonicToNoiseRatioDb: hnrDb,
		Clarity:                measure.Clamp01(clarity),
		StressLevel:            stress,
		Confidence:             confidence,
		Quality:                measure.QualityFromConfidence(confidence),
		CapturedAt:             capturedAt,
	}, nil
}

// perturbations marks glottal cycles across the whole recording and
// derives cycle-to-cycle period and amplitude perturbation ratios.
func (e *Extractor) perturbations(x []float64, rate int, pitchHz float64) (jitter, shimmer float64) {
	expectedPeriod := float64(rate) / pitchHz
	positions, amplitudes := markCycles(x, expectedPeriod)
	if len(positions) < 3 {
		return 0, 0
	}

	// discard spurious cycles whose period is far from the tracked pitch
	var periods, amps []float64
	for i := 1; i < len(positions); i++ {
		p := float64(positions[i] - positions[i-1])
		if p < 0.7*expectedPeriod || p > 1.3*expectedPeriod {
			continue
		}
		periods = append(periods, p)
		amps = append(amps, amplitudes[i])
	}
	if len(periods) < 2 {
		return 0, 0
	}
	return perturbation(periods), perturbation(amps)
}

// harmonicToNoiseDb converts the normalized autocorrelation peak r into
// an HNR estimate: the periodic component carries r of the energy and
// the noise carries 1-r.
func harmonicToNoiseDb(r float64) float64 {
	if r <= 0 {
		return 0
	}
	if r > 0.9999 {
		r = 0.9999
	}
	return 10 * math.Log10(r/(1-r))
}
