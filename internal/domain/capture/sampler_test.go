package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalsense/internal/domain/signal"
)

func solidFrame(w, h int, r, g, b byte, ts time.Time) Frame {
	px := make([]byte, w*h*4)
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = r, g, b, 255
	}
	return Frame{Pixels: px, Width: w, Height: h, Timestamp: ts}
}

func TestFrameSampler_ROIMean(t *testing.T) {
	buf := signal.NewBuffer[signal.RGB](10)
	fs := NewFrameSampler(buf, 10, 0.5)

	fs.OnFrame(solidFrame(32, 32, 200, 150, 100, time.Now()))

	snap := buf.Snapshot()
	require.Len(t, snap, 1)
	assert.InDelta(t, 200, snap[0].Value.R, 0.01)
	assert.InDelta(t, 150, snap[0].Value.G, 0.01)
	assert.InDelta(t, 100, snap[0].Value.B, 0.01)
}

func TestFrameSampler_CenterROIIgnoresBorder(t *testing.T) {
	w, h := 40, 40
	// black border, bright center
	px := make([]byte, w*h*4)
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			idx := (y*w + x) * 4
			px[idx], px[idx+1], px[idx+2], px[idx+3] = 100, 200, 50, 255
		}
	}
	buf := signal.NewBuffer[signal.RGB](10)
	fs := NewFrameSampler(buf, 10, 0.4) // 16x16 centered ROI, inside bright region

	fs.OnFrame(Frame{Pixels: px, Width: w, Height: h, Timestamp: time.Now()})

	snap := buf.Snapshot()
	require.Len(t, snap, 1)
	assert.InDelta(t, 200, snap[0].Value.G, 0.01)
}

func TestFrameSampler_DecimatesFastInput(t *testing.T) {
	buf := signal.NewBuffer[signal.RGB](100)
	fs := NewFrameSampler(buf, 10, 0.4) // 100ms min interval

	base := time.Now()
	// 30 fps input for one simulated second
	for i := 0; i < 30; i++ {
		fs.OnFrame(solidFrame(16, 16, 128, 128, 128, base.Add(time.Duration(i)*time.Second/30)))
	}

	// ~10 of 30 frames survive decimation
	assert.InDelta(t, 10, fs.Accepted(), 2)
	assert.Equal(t, 30, fs.Accepted()+fs.Dropped())
	assert.Equal(t, fs.Accepted(), buf.Len())
}

func TestFrameSampler_SlowInputNotAnError(t *testing.T) {
	buf := signal.NewBuffer[signal.RGB](100)
	fs := NewFrameSampler(buf, 10, 0.4)

	base := time.Now()
	// 2 fps input: every frame accepted, fewer samples produced
	for i := 0; i < 6; i++ {
		fs.OnFrame(solidFrame(16, 16, 128, 128, 128, base.Add(time.Duration(i)*500*time.Millisecond)))
	}

	assert.Equal(t, 6, fs.Accepted())
	assert.Zero(t, fs.Dropped())
}

func TestFrameSampler_RejectsTruncatedPixels(t *testing.T) {
	buf := signal.NewBuffer[signal.RGB](10)
	fs := NewFrameSampler(buf, 10, 0.4)

	fs.OnFrame(Frame{Pixels: make([]byte, 10), Width: 32, Height: 32, Timestamp: time.Now()})

	assert.Zero(t, buf.Len())
}

func TestAudioSampler_PushesBlocks(t *testing.T) {
	buf := signal.NewBuffer[float64](1000)
	as := NewAudioSampler(buf, 44100)

	as.OnBlock(AudioBlock{Samples: []float64{0.1, 0.2, 0.3}, SampleRate: 44100, Timestamp: time.Now()})

	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, 44100, as.ObservedRate())
	assert.False(t, as.RateMismatch())
}

func TestAudioSampler_FlagsRateMismatch(t *testing.T) {
	buf := signal.NewBuffer[float64](1000)
	as := NewAudioSampler(buf, 44100)

	as.OnBlock(AudioBlock{Samples: []float64{0.1}, SampleRate: 16000, Timestamp: time.Now()})

	// no silent correction: samples are buffered, mismatch is flagged
	assert.Equal(t, 1, buf.Len())
	assert.True(t, as.RateMismatch())
	assert.Equal(t, 16000, as.ObservedRate())
}

func TestAudioSampler_InterpolatesTimestamps(t *testing.T) {
	buf := signal.NewBuffer[float64](10)
	as := NewAudioSampler(buf, 1000)

	base := time.Now()
	as.OnBlock(AudioBlock{Samples: []float64{0, 0, 0, 0}, SampleRate: 1000, Timestamp: base})

	snap := buf.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, base, snap[0].Timestamp)
	assert.Equal(t, base.Add(3*time.Millisecond), snap[3].Timestamp)
}

func TestSyntheticFrameSource_DeliversAllFrames(t *testing.T) {
	src := &SyntheticFrameSource{RateHz: 10, Frames: 25, HeartHz: 1.2, Amp: 10}

	var frames []Frame
	err := src.Start(context.Background(), func(f Frame) { frames = append(frames, f) })
	require.NoError(t, err)
	src.Wait()

	require.Len(t, frames, 25)
	// timestamps advance at the configured rate
	dt := frames[1].Timestamp.Sub(frames[0].Timestamp)
	assert.Equal(t, 100*time.Millisecond, dt)
}

func TestSyntheticFrameSource_StopHaltsDelivery(t *testing.T) {
	src := &SyntheticFrameSource{RateHz: 10, Frames: 100000, Pacing: time.Millisecond}

	count := 0
	err := src.Start(context.Background(), func(Frame) { count++ })
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, src.Stop())
	require.NoError(t, src.Stop()) // idempotent
	src.Wait()

	assert.Less(t, count, 100000)
}

func TestSyntheticAudioSource_SilentDelivery(t *testing.T) {
	src := &SyntheticAudioSource{SampleRate: 8000, BlockSize: 1024, Duration: 500 * time.Millisecond, Silent: true}

	total := 0
	err := src.Start(context.Background(), func(b AudioBlock) { total += len(b.Samples) })
	require.NoError(t, err)
	src.Wait()

	assert.Equal(t, 4000, total)
}

func TestSynthesizeVoiced_PeriodicityAndLevel(t *testing.T) {
	rate := 8000
	out := SynthesizeVoiced(rate, time.Second, 100, 0, 0, 0, 1)

	require.Len(t, out, rate)

	// signal repeats with period 80 samples at 100 Hz
	var diff, energy float64
	period := rate / 100
	for i := period; i < len(out); i++ {
		d := out[i] - out[i-period]
		diff += d * d
		energy += out[i] * out[i]
	}
	assert.Less(t, diff, energy*0.01)
}
