package capture

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SyntheticFrameSource generates frames whose ROI green channel carries a
// sinusoidal pulse component, emulating the rPPG skin-color signal. Used by
// the demo CLI and end-to-end tests.
type SyntheticFrameSource struct {
	RateHz   float64       // frame rate encoded in timestamps
	Frames   int           // total frames to deliver
	Width    int
	Height   int
	HeartHz  float64       // injected pulse frequency
	Amp      float64       // pulse amplitude in pixel units
	Noise    float64       // uniform noise amplitude in pixel units
	Pacing   time.Duration // real delay between frames; 0 delivers immediately
	Seed     int64

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Start delivers frames on a background goroutine until Frames is reached,
// the context is cancelled, or Stop is called.
func (s *SyntheticFrameSource) Start(ctx context.Context, deliver func(Frame)) error {
	if s.Width == 0 {
		s.Width = 64
	}
	if s.Height == 0 {
		s.Height = 48
	}
	if s.RateHz == 0 {
		s.RateHz = 10
	}
	s.done = make(chan struct{})

	rng := rand.New(rand.NewSource(s.Seed))
	interval := time.Duration(float64(time.Second) / s.RateHz)
	base := time.Now()

	go func() {
		defer close(s.done)
		for i := 0; i < s.Frames; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.isStopped() {
				return
			}

			t := float64(i) / s.RateHz
			green := 128 + s.Amp*math.Sin(2*math.Pi*s.HeartHz*t) + s.Noise*(rng.Float64()*2-1)
			deliver(s.frame(green, base.Add(time.Duration(i)*interval)))

			if s.Pacing > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.Pacing):
				}
			}
		}
	}()
	return nil
}

func (s *SyntheticFrameSource) frame(green float64, ts time.Time) Frame {
	g := uint8(math.Max(0, math.Min(255, green)))
	px := make([]byte, s.Width*s.Height*4)
	for i := 0; i < len(px); i += 4 {
		px[i] = 140
		px[i+1] = g
		px[i+2] = 110
		px[i+3] = 255
	}
	return Frame{Pixels: px, Width: s.Width, Height: s.Height, Timestamp: ts}
}

func (s *SyntheticFrameSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop halts delivery. Safe to call repeatedly.
func (s *SyntheticFrameSource) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}

// Wait blocks until the delivery goroutine exits. Test helper.
func (s *SyntheticFrameSource) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// SyntheticAudioSource delivers blocks of a synthetic voiced waveform.
type SyntheticAudioSource struct {
	SampleRate int
	BlockSize  int
	Duration   time.Duration
	PitchHz    float64
	Jitter     float64 // cycle-to-cycle period perturbation, e.g. 0.01
	Shimmer    float64 // cycle-to-cycle amplitude perturbation
	Noise      float64
	Silent     bool          // deliver near-silence instead of voiced signal
	Pacing     time.Duration // real delay between blocks; 0 delivers immediately
	Seed       int64

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Start delivers the synthesized signal in blocks.
func (s *SyntheticAudioSource) Start(ctx context.Context, deliver func(AudioBlock)) error {
	if s.SampleRate == 0 {
		s.SampleRate = 44100
	}
	if s.BlockSize == 0 {
		s.BlockSize = 4096
	}
	if s.Duration == 0 {
		s.Duration = 5 * time.Second
	}
	s.done = make(chan struct{})

	var samples []float64
	if s.Silent {
		samples = make([]float64, int(s.Duration.Seconds()*float64(s.SampleRate)))
	} else {
		samples = SynthesizeVoiced(s.SampleRate, s.Duration, s.PitchHz, s.Jitter, s.Shimmer, s.Noise, s.Seed)
	}

	base := time.Now()
	step := time.Second / time.Duration(s.SampleRate)

	go func() {
		defer close(s.done)
		for off := 0; off < len(samples); off += s.BlockSize {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.isStopped() {
				return
			}

			end := off + s.BlockSize
			if end > len(samples) {
				end = len(samples)
			}
			deliver(AudioBlock{
				Samples:    samples[off:end],
				SampleRate: s.SampleRate,
				Timestamp:  base.Add(time.Duration(off) * step),
			})

			if s.Pacing > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.Pacing):
				}
			}
		}
	}()
	return nil
}

func (s *SyntheticAudioSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop halts delivery. Safe to call repeatedly.
func (s *SyntheticAudioSource) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}

// Wait blocks until the delivery goroutine exits. Test helper.
func (s *SyntheticAudioSource) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// SynthesizeVoiced produces a harmonic-rich pulse train at the given
// fundamental, with alternating-sign jitter applied to cycle periods and
// shimmer applied to cycle amplitudes. The measured jitter ratio of the
// output (mean absolute consecutive-period difference over mean period) is
// approximately 2*jitter; likewise for shimmer.
func SynthesizeVoiced(sampleRate int, dur time.Duration, f0, jitter, shimmer, noise float64, seed int64) []float64 {
	if f0 <= 0 {
		f0 = 120
	}
	rng := rand.New(rand.NewSource(seed))
	total := int(dur.Seconds() * float64(sampleRate))
	out := make([]float64, total)

	basePeriod := float64(sampleRate) / f0
	pos := 0
	sign := 1.0
	for pos < total {
		period := basePeriod * (1 + sign*jitter)
		amp := 0.5 * (1 + sign*shimmer)
		sign = -sign

		n := int(math.Round(period))
		if n < 2 {
			n = 2
		}
		for i := 0; i < n && pos+i < total; i++ {
			phase := 2 * math.Pi * float64(i) / period
			v := amp * (math.Sin(phase) + 0.5*math.Sin(2*phase) + 0.25*math.Sin(3*phase))
			out[pos+i] = v + noise*(rng.Float64()*2-1)
		}
		pos += n
	}
	return out
}
