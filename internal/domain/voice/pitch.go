package voice

import (
	"math"
	"sort"
)

// framePitch is the voicing decision for one analysis frame.
type framePitch struct {
	pitchHz float64
	corr    float64 // normalized autocorrelation peak, voicing strength
	voiced  bool
}

// trackPitch runs autocorrelation pitch detection over hopped frames.
func trackPitch(x []float64, sampleRate int, frameLen, hop int, lowHz, highHz, minCorr, rmsFloor float64) []framePitch {
	if frameLen <= 0 || hop <= 0 || len(x) < frameLen {
		return nil
	}

	minLag := int(float64(sampleRate) / highHz)
	maxLag := int(float64(sampleRate) / lowHz)
	if minLag < 2 {
		minLag = 2
	}
	if maxLag >= frameLen {
		maxLag = frameLen - 1
	}

	var frames []framePitch
	for off := 0; off+frameLen <= len(x); off += hop {
		frame := x[off : off+frameLen]
		frames = append(frames, analyzeFrame(frame, sampleRate, minLag, maxLag, minCorr, rmsFloor))
	}
	return frames
}

// analyzeFrame finds the strongest normalized autocorrelation lag in the
// pitch range. Frames below the RMS silence floor are unvoiced outright.
func analyzeFrame(frame []float64, sampleRate, minLag, maxLag int, minCorr, rmsFloor float64) framePitch {
	n := len(frame)

	var mean float64
	for _, v := range frame {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	var energy float64
	for i, v := range frame {
		centered[i] = v - mean
		energy += centered[i] * centered[i]
	}

	if math.Sqrt(energy/float64(n)) < rmsFloor || energy == 0 {
		return framePitch{}
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var num, e1, e2 float64
		for i := 0; i+lag < n; i++ {
			num += centered[i] * centered[i+lag]
			e1 += centered[i] * centered[i]
			e2 += centered[i+lag] * centered[i+lag]
		}
		if e1 == 0 || e2 == 0 {
			continue
		}
		r := num / math.Sqrt(e1*e2)
		if r > bestCorr {
			bestCorr = r
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr < minCorr {
		return framePitch{corr: bestCorr}
	}

	bestLag, bestCorr = preferFundamental(centered, bestLag, bestCorr, minLag)

	return framePitch{
		pitchHz: float64(sampleRate) / float64(bestLag),
		corr:    bestCorr,
		voiced:  true,
	}
}

// preferFundamental corrects octave errors: cycle-to-cycle variation makes
// the autocorrelation peak at a multiple of the true period slightly
// stronger than at the period itself. When a divisor of the best lag
// correlates nearly as well, the divisor is the fundamental.
func preferFundamental(centered []float64, bestLag int, bestCorr float64, minLag int) (int, float64) {
	n := len(centered)
	for div := 3; div >= 2; div-- {
		cand := bestLag / div
		if cand < minLag {
			continue
		}
		candLag, candCorr := 0, 0.0
		for lag := cand - 2; lag <= cand+2; lag++ {
			if lag < minLag || lag >= n {
				continue
			}
			var num, e1, e2 float64
			for i := 0; i+lag < n; i++ {
				num += centered[i] * centered[i+lag]
				e1 += centered[i] * centered[i]
				e2 += centered[i+lag] * centered[i+lag]
			}
			if e1 == 0 || e2 == 0 {
				continue
			}
			if r := num / math.Sqrt(e1*e2); r > candCorr {
				candCorr = r
				candLag = lag
			}
		}
		if candLag != 0 && candCorr >= 0.90*bestCorr {
			return candLag, candCorr
		}
	}
	return bestLag, bestCorr
}

// medianPitch returns the median fundamental across voiced frames after
// discarding outliers more than 25% away from the raw median.
func medianPitch(frames []framePitch) (pitchHz float64, voiced int) {
	var pitches []float64
	for _, f := range frames {
		if f.voiced {
			pitches = append(pitches, f.pitchHz)
		}
	}
	if len(pitches) == 0 {
		return 0, 0
	}

	raw := median(pitches)
	var stable []float64
	for _, p := range pitches {
		if math.Abs(p-raw) <= 0.25*raw {
			stable = append(stable, p)
		}
	}
	if len(stable) == 0 {
		return raw, len(pitches)
	}
	return median(stable), len(pitches)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// markCycles locates one positive peak per glottal cycle, guided by the
// expected period in samples, and returns peak positions and amplitudes.
func markCycles(x []float64, expectedPeriod float64) (positions []int, amplitudes []float64) {
	if expectedPeriod < 2 || len(x) < int(2*expectedPeriod) {
		return nil, nil
	}

	refractory := int(0.7 * expectedPeriod)
	lastPeak := -refractory

	for i := 1; i < len(x)-1; i++ {
		if x[i] <= 0 || x[i] < x[i-1] || x[i] < x[i+1] {
			continue
		}
		if i-lastPeak < refractory {
			// keep the taller of competing peaks within one cycle
			if len(positions) > 0 && x[i] > amplitudes[len(amplitudes)-1] {
				positions[len(positions)-1] = i
				amplitudes[len(amplitudes)-1] = x[i]
				lastPeak = i
			}
			continue
		}
		positions = append(positions, i)
		amplitudes = append(amplitudes, x[i])
		lastPeak = i
	}
	return positions, amplitudes
}

// perturbation is the mean absolute consecutive difference normalized by
// the mean value: the shared formula behind jitter and shimmer.
func perturbation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean, diff float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if mean == 0 {
		return 0
	}
	for i := 1; i < len(values); i++ {
		diff += math.Abs(values[i] - values[i-1])
	}
	return diff / float64(len(values)-1) / mean
}
