package capture

import (
	"sync"
	"time"

	"vitalsense/internal/domain/signal"
)

// FrameSampler turns raw video frames into mean-color samples. For each
// accepted frame it averages R/G/B over a fixed central region of interest
// and pushes one RGBSample into the video buffer. Frames arriving faster
// than the target rate are decimated; slower input just yields fewer
// samples.
type FrameSampler struct {
	buffer      *signal.Buffer[signal.RGB]
	roiFraction float64
	minInterval time.Duration

	mu           sync.Mutex
	lastAccepted time.Time
	accepted     int
	dropped      int
}

// NewFrameSampler creates a sampler targeting the given rate. roiFraction
// is the fraction of frame width/height covered by the centered ROI.
func NewFrameSampler(buffer *signal.Buffer[signal.RGB], targetRateHz, roiFraction float64) *FrameSampler {
	if targetRateHz <= 0 {
		targetRateHz = 10
	}
	if roiFraction <= 0 || roiFraction > 1 {
		roiFraction = 0.4
	}
	return &FrameSampler{
		buffer:      buffer,
		roiFraction: roiFraction,
		minInterval: time.Duration(float64(time.Second) / targetRateHz),
	}
}

// OnFrame processes one frame. Decimation uses frame timestamps, not wall
// clock, so prerecorded input replays deterministically.
func (fs *FrameSampler) OnFrame(f Frame) {
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) < f.Width*f.Height*4 {
		return
	}

	fs.mu.Lock()
	if !fs.lastAccepted.IsZero() && f.Timestamp.Sub(fs.lastAccepted) < fs.minInterval {
		fs.dropped++
		fs.mu.Unlock()
		return
	}
	fs.lastAccepted = f.Timestamp
	fs.accepted++
	fs.mu.Unlock()

	mean := fs.roiMean(f)
	fs.buffer.Push(signal.RGBSample{Timestamp: f.Timestamp, Value: mean})
}

// roiMean averages the channels over the centered ROI.
func (fs *FrameSampler) roiMean(f Frame) signal.RGB {
	roiW := int(float64(f.Width) * fs.roiFraction)
	roiH := int(float64(f.Height) * fs.roiFraction)
	if roiW < 1 {
		roiW = 1
	}
	if roiH < 1 {
		roiH = 1
	}
	x0 := (f.Width - roiW) / 2
	y0 := (f.Height - roiH) / 2

	var sumR, sumG, sumB float64
	for y := y0; y < y0+roiH; y++ {
		row := y * f.Width * 4
		for x := x0; x < x0+roiW; x++ {
			idx := row + x*4
			sumR += float64(f.Pixels[idx])
			sumG += float64(f.Pixels[idx+1])
			sumB += float64(f.Pixels[idx+2])
		}
	}

	n := float64(roiW * roiH)
	return signal.RGB{R: sumR / n, G: sumG / n, B: sumB / n}
}

// Accepted returns the number of frames sampled so far.
func (fs *FrameSampler) Accepted() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.accepted
}

// Dropped returns the number of frames decimated so far.
func (fs *FrameSampler) Dropped() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.dropped
}
