package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalsense/internal/domain/capture"
	"vitalsense/internal/domain/measure"
	"vitalsense/internal/platform/config"
	platformerrors "vitalsense/internal/platform/errors"
)

// countingFrameSource wraps a real source and counts Stop calls, so tests
// can assert the camera handle is released exactly once.
type countingFrameSource struct {
	inner capture.FrameSource

	mu     sync.Mutex
	starts int
	stops  int
}

func (c *countingFrameSource) Start(ctx context.Context, deliver func(capture.Frame)) error {
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
	return c.inner.Start(ctx, deliver)
}

func (c *countingFrameSource) Stop() error {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	return c.inner.Stop()
}

func (c *countingFrameSource) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

type countingAudioSource struct {
	inner capture.AudioSource

	mu     sync.Mutex
	starts int
	stops  int
}

func (c *countingAudioSource) Start(ctx context.Context, deliver func(capture.AudioBlock)) error {
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
	return c.inner.Start(ctx, deliver)
}

func (c *countingAudioSource) Stop() error {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	return c.inner.Stop()
}

func (c *countingAudioSource) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

func (c *countingAudioSource) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// busyFrameSource refuses to start, emulating a camera held by another
// process.
type busyFrameSource struct{}

func (busyFrameSource) Start(context.Context, func(capture.Frame)) error {
	return errors.New("device busy")
}
func (busyFrameSource) Stop() error { return nil }

// stalledFrameSource starts fine but never delivers a frame.
type stalledFrameSource struct{}

func (stalledFrameSource) Start(context.Context, func(capture.Frame)) error { return nil }
func (stalledFrameSource) Stop() error                                      { return nil }

// driftingAudioSource starts at the nominal rate and then renegotiates
// its clock mid-capture.
type driftingAudioSource struct{}

func (driftingAudioSource) Start(_ context.Context, deliver func(capture.AudioBlock)) error {
	base := time.Now()
	deliver(capture.AudioBlock{Samples: make([]float64, 30000), SampleRate: 44100, Timestamp: base})
	deliver(capture.AudioBlock{Samples: make([]float64, 30000), SampleRate: 48000, Timestamp: base.Add(680 * time.Millisecond)})
	return nil
}
func (driftingAudioSource) Stop() error { return nil }

// ctxCapturingAudioSource records the context its Start receives, so tests
// can check the session context's lifetime.
type ctxCapturingAudioSource struct {
	inner capture.AudioSource

	mu  sync.Mutex
	ctx context.Context
}

func (c *ctxCapturingAudioSource) Start(ctx context.Context, deliver func(capture.AudioBlock)) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	return c.inner.Start(ctx, deliver)
}

func (c *ctxCapturingAudioSource) Stop() error { return nil }

func (c *ctxCapturingAudioSource) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Session.FaceTimeout = config.Duration(2 * time.Second)
	cfg.Session.FaceSampleTarget = 100
	cfg.Session.VoiceTimeout = config.Duration(2 * time.Second)
	cfg.Session.VoiceSampleTarget = 44100
	return cfg
}

func goodFrameSource() *countingFrameSource {
	return &countingFrameSource{inner: &capture.SyntheticFrameSource{
		RateHz: 10, Frames: 120, HeartHz: 1.2, Amp: 10, Noise: 1, Seed: 3,
	}}
}

func goodAudioSource() *countingAudioSource {
	return &countingAudioSource{inner: &capture.SyntheticAudioSource{
		SampleRate: 44100, Duration: 1500 * time.Millisecond,
		PitchHz: 140, Jitter: 0.005, Shimmer: 0.02, Noise: 0.005, Seed: 3,
	}}
}

type results struct {
	mu     sync.Mutex
	heart  []measure.HeartSignalResult
	voice  []measure.VoiceSignalResult
	errs   []error
	phases []Phase
}

func (r *results) callbacks() Callbacks {
	return Callbacks{
		OnPhase: func(_ string, p Phase) {
			r.mu.Lock()
			r.phases = append(r.phases, p)
			r.mu.Unlock()
		},
		OnHeartResult: func(_ string, res measure.HeartSignalResult) {
			r.mu.Lock()
			r.heart = append(r.heart, res)
			r.mu.Unlock()
		},
		OnVoiceResult: func(_ string, res measure.VoiceSignalResult) {
			r.mu.Lock()
			r.voice = append(r.voice, res)
			r.mu.Unlock()
		},
		OnError: func(_ string, _ Phase, err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func TestOrchestrator_FullSession(t *testing.T) {
	frames := goodFrameSource()
	audio := goodAudioSource()
	o := New(testConfig(), frames, audio, nil)

	var rec results
	id, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	o.Wait()

	assert.Equal(t, PhaseComplete, o.Phase())
	require.Len(t, rec.heart, 1)
	require.Len(t, rec.voice, 1)
	assert.Empty(t, rec.errs)

	assert.InDelta(t, 72, rec.heart[0].HeartRateBPM, 3)
	assert.InDelta(t, 140, rec.voice[0].PitchHz, 7)

	assert.Equal(t, 1, frames.stopCount())
	assert.Equal(t, 1, audio.stopCount())

	sum, ok := o.Summary()
	require.True(t, ok)
	assert.Equal(t, id, sum.SessionID)
	require.NotNil(t, sum.Heart)
	require.NotNil(t, sum.Voice)
	assert.Equal(t, PhaseComplete, sum.Final)
}

func TestOrchestrator_PhaseOrder(t *testing.T) {
	o := New(testConfig(), goodFrameSource(), goodAudioSource(), nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)
	o.Wait()

	require.GreaterOrEqual(t, len(rec.phases), 5)
	assert.Equal(t, PhaseCapturingFace, rec.phases[0])
	assert.Equal(t, PhaseComplete, rec.phases[len(rec.phases)-1])

	// analysis phases appear in capture order
	idx := map[Phase]int{}
	for i, p := range rec.phases {
		idx[p] = i
	}
	assert.Less(t, idx[PhaseAnalyzingFace], idx[PhaseCapturingVoice])
	assert.Less(t, idx[PhaseCapturingVoice], idx[PhaseAnalyzingVoice])
}

func TestOrchestrator_CancelDuringFaceCapture(t *testing.T) {
	frames := &countingFrameSource{inner: &capture.SyntheticFrameSource{
		RateHz: 10, Frames: 10000, HeartHz: 1.2, Amp: 10,
		Pacing: 5 * time.Millisecond,
	}}
	audio := goodAudioSource()
	o := New(testConfig(), frames, audio, nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	o.Cancel()
	o.Wait()

	assert.Equal(t, PhaseCancelled, o.Phase())
	assert.Empty(t, rec.heart)
	assert.Empty(t, rec.voice)
	assert.Equal(t, 1, frames.stopCount())
	assert.Zero(t, audio.startCount(), "microphone must not be touched after cancel")
}

func TestOrchestrator_CancelDuringVoiceAnalysis(t *testing.T) {
	frames := goodFrameSource()
	audio := goodAudioSource()
	o := New(testConfig(), frames, audio, nil)

	var rec results
	cb := rec.callbacks()
	userPhase := cb.OnPhase
	// cancel the moment analysis begins, before any result can go out
	cb.OnPhase = func(id string, p Phase) {
		userPhase(id, p)
		if p == PhaseAnalyzingVoice {
			o.Cancel()
		}
	}

	_, err := o.Start(context.Background(), cb)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, PhaseCancelled, o.Phase())
	assert.Empty(t, rec.voice, "no voice result after cancel")
	require.Len(t, rec.heart, 1, "the heart result emitted before cancel stands")
	assert.Equal(t, 1, audio.stopCount())

	sum, ok := o.Summary()
	require.True(t, ok)
	assert.Equal(t, PhaseCancelled, sum.Final)
	assert.Nil(t, sum.Voice)
}

func TestOrchestrator_CancelDuringFaceAnalysis(t *testing.T) {
	frames := goodFrameSource()
	audio := goodAudioSource()
	o := New(testConfig(), frames, audio, nil)

	var rec results
	cb := rec.callbacks()
	userPhase := cb.OnPhase
	cb.OnPhase = func(id string, p Phase) {
		userPhase(id, p)
		if p == PhaseAnalyzingFace {
			o.Cancel()
		}
	}

	_, err := o.Start(context.Background(), cb)
	require.NoError(t, err)
	o.Wait()

	assert.Equal(t, PhaseCancelled, o.Phase())
	assert.Empty(t, rec.heart)
	assert.Empty(t, rec.voice)
	assert.Zero(t, audio.startCount(), "microphone must not be touched after cancel")
	assert.Equal(t, 1, frames.stopCount())
}

func TestOrchestrator_MidStreamRateChange(t *testing.T) {
	frames := goodFrameSource()
	o := New(testConfig(), frames, driftingAudioSource{}, nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)
	o.Wait()

	// the drift poisons the voice phase but not the session
	require.Len(t, rec.errs, 1)
	assert.True(t, platformerrors.IsKind(rec.errs[0], platformerrors.KindSampleRate))
	assert.Empty(t, rec.voice)
	require.Len(t, rec.heart, 1)
	assert.Equal(t, PhaseComplete, o.Phase())
}

func TestOrchestrator_ReleasesRunContextOnCompletion(t *testing.T) {
	audio := &ctxCapturingAudioSource{inner: &capture.SyntheticAudioSource{
		SampleRate: 44100, Duration: 1500 * time.Millisecond,
		PitchHz: 140, Seed: 3,
	}}
	o := New(testConfig(), goodFrameSource(), audio, nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)
	o.Wait()

	require.Equal(t, PhaseComplete, o.Phase())
	captured := audio.context()
	require.NotNil(t, captured)
	assert.ErrorIs(t, captured.Err(), context.Canceled,
		"the session context is released once the session finishes")
}

func TestOrchestrator_CameraBusyFailsSession(t *testing.T) {
	audio := goodAudioSource()
	o := New(testConfig(), busyFrameSource{}, audio, nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)
	o.Wait()

	require.Len(t, rec.errs, 1)
	assert.True(t, platformerrors.IsKind(rec.errs[0], platformerrors.KindResource))

	// losing the camera ends the session; no partial result is produced
	assert.Empty(t, rec.heart)
	assert.Empty(t, rec.voice)
	assert.Zero(t, audio.startCount())
	assert.Equal(t, PhaseError, o.Phase())
}

func TestOrchestrator_EmptyCaptureWindowIsDataError(t *testing.T) {
	cfg := testConfig()
	cfg.Session.FaceTimeout = config.Duration(100 * time.Millisecond)
	audio := goodAudioSource()
	o := New(cfg, stalledFrameSource{}, audio, nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)
	o.Wait()

	require.Len(t, rec.errs, 1)
	assert.True(t, platformerrors.IsKind(rec.errs[0], platformerrors.KindData))
	require.Len(t, rec.voice, 1)
	assert.Equal(t, PhaseComplete, o.Phase())
}

func TestOrchestrator_RejectsConcurrentStart(t *testing.T) {
	frames := &countingFrameSource{inner: &capture.SyntheticFrameSource{
		RateHz: 10, Frames: 10000, HeartHz: 1.2, Amp: 10,
		Pacing: 5 * time.Millisecond,
	}}
	o := New(testConfig(), frames, goodAudioSource(), nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)

	_, err = o.Start(context.Background(), rec.callbacks())
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindSession))

	o.Cancel()
	o.Wait()

	// a finished session frees the slot
	o2frames := goodFrameSource()
	o = New(testConfig(), o2frames, goodAudioSource(), nil)
	_, err = o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)
	o.Cancel()
	o.Wait()
}

func TestOrchestrator_ProgressAdvances(t *testing.T) {
	frames := &countingFrameSource{inner: &capture.SyntheticFrameSource{
		RateHz: 10, Frames: 10000, HeartHz: 1.2, Amp: 10,
		Pacing: 2 * time.Millisecond,
	}}
	o := New(testConfig(), frames, goodAudioSource(), nil)

	var rec results
	_, err := o.Start(context.Background(), rec.callbacks())
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	p := o.Progress()
	assert.Equal(t, PhaseCapturingFace, p.Phase)
	assert.Greater(t, p.Fraction, 0.0)
	assert.LessOrEqual(t, p.Fraction, 1.0)

	o.Cancel()
	o.Wait()
	assert.Equal(t, 1.0, o.Progress().Fraction)
}
