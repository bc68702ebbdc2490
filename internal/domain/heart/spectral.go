package heart

import (
	"math"
	"math/cmplx"
)

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft computes an in-place iterative radix-2 FFT. len(x) must be a power
// of two. Pass inverse=true for the unscaled inverse transform.
func fft(x []complex128, inverse bool) {
	n := len(x)
	if n <= 1 {
		return
	}

	// bit reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := 2 * math.Pi / float64(length)
		if !inverse {
			angle = -angle
		}
		wl := cmplx.Exp(complex(0, angle))
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				u := x[start+k]
				v := x[start+k+length/2] * w
				x[start+k] = u + v
				x[start+k+length/2] = u - v
				w *= wl
			}
		}
	}
}

// detrend removes the least-squares linear trend, suppressing DC offset and
// slow illumination drift.
func detrend(x []float64) []float64 {
	n := len(x)
	if n < 2 {
		return append([]float64(nil), x...)
	}

	var sumT, sumX, sumTT, sumTX float64
	for i, v := range x {
		t := float64(i)
		sumT += t
		sumX += v
		sumTT += t * t
		sumTX += t * v
	}
	fn := float64(n)
	denom := fn*sumTT - sumT*sumT
	var slope, intercept float64
	if denom != 0 {
		slope = (fn*sumTX - sumT*sumX) / denom
		intercept = (sumX - slope*sumT) / fn
	} else {
		intercept = sumX / fn
	}

	out := make([]float64, n)
	for i, v := range x {
		out[i] = v - (intercept + slope*float64(i))
	}
	return out
}

// hann applies a Hann window, returning a new slice.
func hann(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 1 {
		out[0] = x[0]
		return out
	}
	for i, v := range x {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		out[i] = v * w
	}
	return out
}

// powerSpectrum returns per-bin power of the zero-padded FFT of x, plus the
// frequency step per bin. Only the first nfft/2+1 bins are returned.
func powerSpectrum(x []float64, sampleRate float64) (power []float64, binHz float64) {
	nfft := nextPow2(len(x))
	if nfft < 256 {
		nfft = 256
	}

	buf := make([]complex128, nfft)
	for i, v := range x {
		buf[i] = complex(v, 0)
	}
	fft(buf, false)

	half := nfft/2 + 1
	power = make([]float64, half)
	for i := 0; i < half; i++ {
		power[i] = real(buf[i])*real(buf[i]) + imag(buf[i])*imag(buf[i])
	}
	return power, sampleRate / float64(nfft)
}

// bandpass zeroes all spectral content outside [lowHz, highHz] and returns
// the filtered time series, same length as the input.
func bandpass(x []float64, sampleRate, lowHz, highHz float64) []float64 {
	n := len(x)
	nfft := nextPow2(n)

	buf := make([]complex128, nfft)
	for i, v := range x {
		buf[i] = complex(v, 0)
	}
	fft(buf, false)

	binHz := sampleRate / float64(nfft)
	for i := 0; i <= nfft/2; i++ {
		f := float64(i) * binHz
		if f < lowHz || f > highHz {
			buf[i] = 0
			if i != 0 && i != nfft/2 {
				buf[nfft-i] = 0
			}
		}
	}

	fft(buf, true)
	out := make([]float64, n)
	scale := 1 / float64(nfft)
	for i := range out {
		out[i] = real(buf[i]) * scale
	}
	return out
}

// peakInBand locates the highest-power bin with lowHz <= f <= highHz and
// refines the frequency by parabolic interpolation over adjacent bins.
// Returns -1 index when the band holds no bins.
func peakInBand(power []float64, binHz, lowHz, highHz float64) (idx int, freqHz, peakPower float64) {
	idx = -1
	for i := 1; i < len(power)-1; i++ {
		f := float64(i) * binHz
		if f < lowHz || f > highHz {
			continue
		}
		if idx == -1 || power[i] > peakPower {
			idx = i
			peakPower = power[i]
		}
	}
	if idx <= 0 {
		return idx, 0, 0
	}

	// parabolic refinement around the peak bin
	y0, y1, y2 := power[idx-1], power[idx], power[idx+1]
	denom := y0 - 2*y1 + y2
	shift := 0.0
	if denom != 0 {
		shift = 0.5 * (y0 - y2) / denom
		if shift > 0.5 {
			shift = 0.5
		} else if shift < -0.5 {
			shift = -0.5
		}
	}
	return idx, (float64(idx) + shift) * binHz, peakPower
}
