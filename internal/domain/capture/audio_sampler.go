package capture

import (
	"sync"
	"time"

	"vitalsense/internal/domain/signal"
)

// AudioSampler pushes PCM blocks into the audio buffer at native block
// cadence. No resampling happens here: the sampler records the rate the
// source actually delivered, and the analyzer treats a mismatch against the
// nominal rate as a precondition violation at analysis time.
type AudioSampler struct {
	buffer      *signal.Buffer[float64]
	nominalRate int

	mu           sync.Mutex
	observedRate int
	mismatch     bool
	blocks       int
}

// NewAudioSampler creates a sampler expecting the given nominal sample rate.
func NewAudioSampler(buffer *signal.Buffer[float64], nominalRate int) *AudioSampler {
	return &AudioSampler{
		buffer:      buffer,
		nominalRate: nominalRate,
	}
}

// OnBlock records one PCM block. Per-sample timestamps are interpolated
// from the block timestamp and the block's own sample rate.
func (as *AudioSampler) OnBlock(b AudioBlock) {
	if len(b.Samples) == 0 || b.SampleRate <= 0 {
		return
	}

	as.mu.Lock()
	if as.observedRate == 0 {
		as.observedRate = b.SampleRate
	}
	if b.SampleRate != as.nominalRate {
		as.mismatch = true
	}
	as.blocks++
	as.mu.Unlock()

	step := time.Second / time.Duration(b.SampleRate)
	for i, v := range b.Samples {
		as.buffer.Push(signal.PCMSample{
			Timestamp: b.Timestamp.Add(time.Duration(i) * step),
			Value:     v,
		})
	}
}

// ObservedRate returns the sample rate of the first delivered block, or 0
// when nothing arrived yet.
func (as *AudioSampler) ObservedRate() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.observedRate
}

// RateMismatch reports whether any block deviated from the nominal rate.
func (as *AudioSampler) RateMismatch() bool {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.mismatch
}

// Blocks returns the number of delivered blocks.
func (as *AudioSampler) Blocks() int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.blocks
}
