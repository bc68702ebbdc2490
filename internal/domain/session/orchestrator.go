package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vitalsense/internal/domain/capture"
	"vitalsense/internal/domain/eventbus"
	"vitalsense/internal/domain/heart"
	"vitalsense/internal/domain/measure"
	"vitalsense/internal/domain/signal"
	"vitalsense/internal/domain/voice"
	"vitalsense/internal/platform/config"
	platformerrors "vitalsense/internal/platform/errors"
	"vitalsense/internal/platform/logging"
)

const logTag = "SESSION"

// pollInterval is how often capture phases check their completion
// conditions. Completion is sample-count or wall-clock driven, never
// tied to delivery callbacks, so a stalled device cannot wedge a phase.
const pollInterval = 20 * time.Millisecond

// Orchestrator drives one measurement session at a time: face capture,
// heart analysis, voice capture, voice analysis. Hardware handles are
// exclusive: at most one source is open at any moment, and each is
// released exactly once no matter how its phase ends.
type Orchestrator struct {
	cfg    *config.Config
	frames capture.FrameSource
	audio  capture.AudioSource
	logger *logging.Logger

	heartEstimator *heart.Estimator
	voiceExtractor *voice.Extractor

	mu        sync.Mutex
	phase     Phase
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
	summary   *Summary

	progSamples int
	progTarget  int
	phaseStart  time.Time
	phaseLimit  time.Duration
}

// New builds an orchestrator around the given capture sources. The
// analyzers are configured from cfg once, up front.
func New(cfg *config.Config, frames capture.FrameSource, audio capture.AudioSource, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		frames: frames,
		audio:  audio,
		logger: logger,
		phase:  PhaseIdle,
		heartEstimator: heart.NewEstimator(heart.Config{
			BandLowHz:      cfg.Heart.BandLowHz,
			BandHighHz:     cfg.Heart.BandHighHz,
			MinSamples:     cfg.Heart.MinSamples,
			ConfidenceKnee: cfg.Heart.ConfidenceKnee,
		}),
		voiceExtractor: voice.NewExtractor(voice.Config{
			NominalSampleRate: cfg.Audio.NominalSampleRate,
			FrameMs:           cfg.Voice.FrameMs,
			HopMs:             cfg.Voice.HopMs,
			PitchLowHz:        cfg.Voice.PitchLowHz,
			PitchHighHz:       cfg.Voice.PitchHighHz,
			VoicingMinCorr:    cfg.Voice.VoicingMinCorr,
			SilenceRMSFloor:   cfg.Voice.SilenceRMSFloor,
		}),
	}
}

// Start begins a session and returns its ID immediately; the phases run
// on a background goroutine. A second Start while a session is active is
// rejected.
func (o *Orchestrator) Start(ctx context.Context, cb Callbacks) (string, error) {
	o.mu.Lock()
	if o.phase != PhaseIdle && !o.phase.Terminal() {
		o.mu.Unlock()
		return "", platformerrors.New(platformerrors.KindSession,
			"session start", "a capture session is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	o.sessionID = id
	o.cancel = cancel
	o.done = make(chan struct{})
	o.phase = PhaseCapturingFace
	o.summary = nil
	done := o.done
	o.mu.Unlock()

	o.logger.InfoTag(logTag, "session %s started", id)
	eventbus.Publish(eventbus.EventSessionStarted, eventbus.SessionEventData{
		SessionID: id, Phase: string(PhaseCapturingFace),
	})
	cb.phase(id, PhaseCapturingFace)

	go func() {
		defer close(done)
		o.run(runCtx, id, cb)
	}()
	return id, nil
}

// Cancel aborts the active session. Safe to call when nothing is running.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Phase returns the current session phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Progress reports how far the current capture phase has advanced.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := Progress{Phase: o.phase, Samples: o.progSamples, Target: o.progTarget}
	if o.phase.Terminal() {
		p.Fraction = 1
		return p
	}
	var bySamples, byTime float64
	if o.progTarget > 0 {
		bySamples = float64(o.progSamples) / float64(o.progTarget)
	}
	if o.phaseLimit > 0 && !o.phaseStart.IsZero() {
		byTime = float64(time.Since(o.phaseStart)) / float64(o.phaseLimit)
	}
	p.Fraction = measure.Clamp01(max(bySamples, byTime))
	return p
}

// Summary returns the aggregate of the most recently finished session.
func (o *Orchestrator) Summary() (Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.summary == nil {
		return Summary{}, false
	}
	return *o.summary, true
}

// Wait blocks until the active session's goroutine exits.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) run(ctx context.Context, id string, cb Callbacks) {
	summary := &Summary{SessionID: id, StartedAt: time.Now()}

	heartRes, faceOut := o.facePhase(ctx, id, cb)
	if heartRes != nil {
		summary.Heart = heartRes
	}

	var voiceRes *measure.VoiceSignalResult
	voiceOut := phaseSkipped
	if faceOut != phaseCancelled && faceOut != phaseFatal {
		voiceRes, voiceOut = o.voicePhase(ctx, id, cb)
		if voiceRes != nil {
			summary.Voice = voiceRes
		}
	}

	final := PhaseComplete
	switch {
	case faceOut == phaseCancelled || voiceOut == phaseCancelled:
		final = PhaseCancelled
	case faceOut == phaseFatal || voiceOut == phaseFatal:
		final = PhaseError
	case heartRes == nil && voiceRes == nil:
		final = PhaseError
	}
	summary.FinishedAt = time.Now()
	summary.Final = final

	o.mu.Lock()
	o.phase = final
	o.summary = summary
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()
	if cancel != nil {
		// releases the derived context even when nobody cancelled
		cancel()
	}

	switch final {
	case PhaseCancelled:
		o.logger.InfoTag(logTag, "session %s cancelled", id)
		eventbus.Publish(eventbus.EventSessionCancelled, eventbus.SessionEventData{
			SessionID: id, Phase: string(final),
		})
	case PhaseError:
		o.logger.WarnTag(logTag, "session %s failed", id)
		eventbus.Publish(eventbus.EventSessionError, eventbus.ErrorEventData{
			SessionID: id, Message: "session failed",
		})
	default:
		o.logger.InfoTag(logTag, "session %s complete", id)
		eventbus.Publish(eventbus.EventSessionCompleted, eventbus.SessionEventData{
			SessionID: id, Phase: string(final),
		})
	}
	cb.phase(id, final)
}

// phaseOutcome distinguishes how a capture phase ended. Data and
// analysis failures are fatal to their phase only; losing the hardware
// handle ends the whole session with no partial result.
type phaseOutcome int

const (
	phaseOK phaseOutcome = iota
	phaseDegraded
	phaseFatal
	phaseCancelled
	phaseSkipped
)

// facePhase captures mean-color samples from the camera and runs the
// heart estimator over them. A data failure is reported through the
// error callback but does not end the session; the voice phase still
// gets its chance.
func (o *Orchestrator) facePhase(ctx context.Context, id string, cb Callbacks) (*measure.HeartSignalResult, phaseOutcome) {
	buffer := signal.NewBuffer[signal.RGB](o.cfg.Video.BufferCapacity)
	sampler := capture.NewFrameSampler(buffer, o.cfg.Video.TargetRateHz, o.cfg.Video.ROIFraction)

	target := o.cfg.Session.FaceSampleTarget
	timeout := o.cfg.Session.FaceTimeout.Std()
	o.beginPhase(PhaseCapturingFace, target, timeout)

	var stopOnce sync.Once
	release := func() {
		stopOnce.Do(func() {
			if err := o.frames.Stop(); err != nil {
				o.logger.WarnTag(logTag, "camera release failed: %v", err)
			}
		})
	}
	defer release()

	if err := o.frames.Start(ctx, sampler.OnFrame); err != nil {
		wrapped := platformerrors.Wrap(platformerrors.KindResource,
			"face capture", "camera acquisition failed", err)
		o.reportPhaseError(id, PhaseCapturingFace, wrapped, cb)
		return nil, phaseFatal
	}

	if o.awaitCapture(ctx, buffer.Len, target, timeout) {
		return nil, phaseCancelled
	}
	release()
	if ctx.Err() != nil {
		return nil, phaseCancelled
	}

	o.setPhase(id, PhaseAnalyzingFace, cb)
	samples := buffer.Snapshot()
	if len(samples) == 0 {
		err := platformerrors.New(platformerrors.KindData,
			"face capture", "no frames arrived before the capture window closed")
		o.reportPhaseError(id, PhaseCapturingFace, err, cb)
		return nil, phaseDegraded
	}

	res, err := o.heartEstimator.Analyze(samples)
	if err != nil {
		o.reportPhaseError(id, PhaseAnalyzingFace, err, cb)
		return nil, phaseDegraded
	}
	// a cancel that lands during analysis suppresses the result
	if ctx.Err() != nil {
		return nil, phaseCancelled
	}

	o.logger.InfoTag(logTag, "session %s heart: %.1f bpm, quality %s",
		id, res.HeartRateBPM, res.Quality)
	eventbus.Publish(eventbus.EventHeartResult, eventbus.ResultEventData{
		SessionID: id, Kind: "heart", Result: res,
	})
	cb.heartResult(id, res)
	return &res, phaseOK
}

// voicePhase captures PCM from the microphone and runs the acoustic
// feature extractor over it.
func (o *Orchestrator) voicePhase(ctx context.Context, id string, cb Callbacks) (*measure.VoiceSignalResult, phaseOutcome) {
	rate := o.cfg.Audio.NominalSampleRate
	capacity := rate * o.cfg.Audio.BufferSeconds
	buffer := signal.NewBuffer[float64](capacity)
	sampler := capture.NewAudioSampler(buffer, rate)

	target := o.cfg.Session.VoiceSampleTarget
	timeout := o.cfg.Session.VoiceTimeout.Std()
	o.setPhase(id, PhaseCapturingVoice, cb)
	o.beginPhase(PhaseCapturingVoice, target, timeout)

	var stopOnce sync.Once
	release := func() {
		stopOnce.Do(func() {
			if err := o.audio.Stop(); err != nil {
				o.logger.WarnTag(logTag, "microphone release failed: %v", err)
			}
		})
	}
	defer release()

	if err := o.audio.Start(ctx, sampler.OnBlock); err != nil {
		wrapped := platformerrors.Wrap(platformerrors.KindResource,
			"voice capture", "microphone acquisition failed", err)
		o.reportPhaseError(id, PhaseCapturingVoice, wrapped, cb)
		return nil, phaseFatal
	}

	if o.awaitCapture(ctx, buffer.Len, target, timeout) {
		return nil, phaseCancelled
	}
	release()
	if ctx.Err() != nil {
		return nil, phaseCancelled
	}

	o.setPhase(id, PhaseAnalyzingVoice, cb)
	samples := buffer.Snapshot()
	if len(samples) == 0 {
		err := platformerrors.New(platformerrors.KindData,
			"voice capture", "no audio arrived before the capture window closed")
		o.reportPhaseError(id, PhaseCapturingVoice, err, cb)
		return nil, phaseDegraded
	}

	// the observed rate reflects only the first block; a source that
	// drifted mid-capture is caught by the sampler's mismatch flag
	if sampler.RateMismatch() {
		err := platformerrors.New(platformerrors.KindSampleRate,
			"voice analysis", "audio blocks deviated from the configured nominal sample rate")
		o.reportPhaseError(id, PhaseAnalyzingVoice, err, cb)
		return nil, phaseDegraded
	}

	res, err := o.voiceExtractor.Analyze(samples, sampler.ObservedRate())
	if err != nil {
		o.reportPhaseError(id, PhaseAnalyzingVoice, err, cb)
		return nil, phaseDegraded
	}
	// a cancel that lands during analysis suppresses the result
	if ctx.Err() != nil {
		return nil, phaseCancelled
	}

	o.logger.InfoTag(logTag, "session %s voice: %.1f hz pitch, quality %s",
		id, res.PitchHz, res.Quality)
	eventbus.Publish(eventbus.EventVoiceResult, eventbus.ResultEventData{
		SessionID: id, Kind: "voice", Result: res,
	})
	cb.voiceResult(id, res)
	return &res, phaseOK
}

// awaitCapture polls until the sample target is met, the wall-clock
// window closes, or the session is cancelled. Returns true on cancel.
func (o *Orchestrator) awaitCapture(ctx context.Context, count func() int, target int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			n := count()
			o.mu.Lock()
			o.progSamples = n
			o.mu.Unlock()
			if (target > 0 && n >= target) || time.Now().After(deadline) {
				return false
			}
		}
	}
}

func (o *Orchestrator) beginPhase(p Phase, target int, limit time.Duration) {
	o.mu.Lock()
	o.phase = p
	o.progSamples = 0
	o.progTarget = target
	o.phaseStart = time.Now()
	o.phaseLimit = limit
	o.mu.Unlock()
}

func (o *Orchestrator) setPhase(id string, p Phase, cb Callbacks) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()

	o.logger.DebugTag(logTag, "session %s phase: %s", id, p)
	eventbus.Publish(eventbus.EventSessionPhase, eventbus.SessionEventData{
		SessionID: id, Phase: string(p),
	})
	cb.phase(id, p)
}

func (o *Orchestrator) reportPhaseError(id string, p Phase, err error, cb Callbacks) {
	o.logger.WarnTag(logTag, "session %s %s failed: %v", id, p, err)
	eventbus.Publish(eventbus.EventSessionError, eventbus.ErrorEventData{
		SessionID: id, Phase: string(p), Message: err.Error(),
	})
	cb.failure(id, p, err)
}
