package heart

import (
	"math"

	"vitalsense/internal/domain/measure"
)

// NeutralStressIndex is reported when variability cannot be derived.
const NeutralStressIndex = 0.5

// Stress calibration constants. The index starts from neutral, rises with
// the in-band low/high power ratio (sympathetic dominance) and falls with
// beat-to-beat variability (RMSSD).
const (
	stressLFLowHz   = 0.7
	stressLFHighHz  = 1.5
	stressHFHighHz  = 4.0
	lfhfNeutral     = 1.5
	lfhfScale       = 3.0
	rmssdNeutralMs  = 40.0
	rmssdScaleMs    = 60.0
	lfhfWeight      = 0.35
	rmssdWeight     = 0.25
	minBeatsForHRV  = 3
)

// stressFromFiltered derives an HRV figure (SDNN, ms) and a stress index in
// [0,1] from the band-passed pulse wave and its power spectrum. Any failure
// degrades to zero HRV and the neutral index; it never fails the caller.
func stressFromFiltered(filtered, power []float64, binHz, sampleRate float64) (hrvMs, stressIdx float64) {
	hrvMs = 0
	stressIdx = NeutralStressIndex

	intervals := beatIntervals(filtered, sampleRate)
	if len(intervals) < minBeatsForHRV {
		return hrvMs, stressIdx
	}

	sdnn := sdnnMs(intervals)
	rmssd := rmssdMs(intervals)
	lfhf := bandPowerRatio(power, binHz)

	hrvMs = sdnn
	stressIdx = measure.Clamp01(NeutralStressIndex +
		lfhfWeight*(lfhf-lfhfNeutral)/lfhfScale -
		rmssdWeight*(rmssd-rmssdNeutralMs)/rmssdScaleMs)
	return hrvMs, stressIdx
}

// beatIntervals picks positive-going peaks in the filtered pulse wave with
// a refractory gap of 0.25 s (240 BPM ceiling) and returns the successive
// inter-beat intervals in seconds.
func beatIntervals(x []float64, sampleRate float64) []float64 {
	if sampleRate <= 0 || len(x) < 3 {
		return nil
	}

	refractory := int(0.25 * sampleRate)
	if refractory < 1 {
		refractory = 1
	}

	var peaks []int
	lastPeak := -refractory
	for i := 1; i < len(x)-1; i++ {
		if x[i] <= 0 || x[i] < x[i-1] || x[i] < x[i+1] {
			continue
		}
		if i-lastPeak < refractory {
			continue
		}
		peaks = append(peaks, i)
		lastPeak = i
	}

	if len(peaks) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals = append(intervals, float64(peaks[i]-peaks[i-1])/sampleRate)
	}
	return intervals
}

// sdnnMs is the standard deviation of inter-beat intervals in milliseconds.
func sdnnMs(intervals []float64) float64 {
	var mean float64
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))

	var variance float64
	for _, v := range intervals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(intervals))
	return math.Sqrt(variance) * 1000
}

// rmssdMs is the root mean square of successive interval differences in
// milliseconds.
func rmssdMs(intervals []float64) float64 {
	if len(intervals) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sum += d * d
	}
	return math.Sqrt(sum/float64(len(intervals)-1)) * 1000
}

// bandPowerRatio is the low-band over high-band spectral power within the
// physiological range.
func bandPowerRatio(power []float64, binHz float64) float64 {
	var lf, hf float64
	for i := 1; i < len(power); i++ {
		f := float64(i) * binHz
		switch {
		case f >= stressLFLowHz && f < stressLFHighHz:
			lf += power[i]
		case f >= stressLFHighHz && f <= stressHFHighHz:
			hf += power[i]
		}
	}
	if hf <= 0 {
		return lfhfNeutral
	}
	return lf / hf
}
