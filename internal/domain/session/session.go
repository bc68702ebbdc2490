package session

import (
	"time"

	"vitalsense/internal/domain/measure"
)

// Phase is the orchestrator state. Transitions only move forward through
// the capture/analysis sequence, or jump to a terminal phase.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseCapturingFace  Phase = "capturing_face"
	PhaseAnalyzingFace  Phase = "analyzing_face"
	PhaseCapturingVoice Phase = "capturing_voice"
	PhaseAnalyzingVoice Phase = "analyzing_voice"
	PhaseComplete       Phase = "complete"
	PhaseCancelled      Phase = "cancelled"
	PhaseError          Phase = "error"
)

// Terminal reports whether the phase ends a session.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseCancelled || p == PhaseError
}

// Callbacks receive session events. All fields are optional; a panicking
// callback is recovered so it cannot take the session goroutine down.
type Callbacks struct {
	OnPhase       func(sessionID string, phase Phase)
	OnHeartResult func(sessionID string, result measure.HeartSignalResult)
	OnVoiceResult func(sessionID string, result measure.VoiceSignalResult)
	OnError       func(sessionID string, phase Phase, err error)
}

func (cb Callbacks) phase(id string, p Phase) {
	if cb.OnPhase != nil {
		safeInvoke(func() { cb.OnPhase(id, p) })
	}
}

func (cb Callbacks) heartResult(id string, r measure.HeartSignalResult) {
	if cb.OnHeartResult != nil {
		safeInvoke(func() { cb.OnHeartResult(id, r) })
	}
}

func (cb Callbacks) voiceResult(id string, r measure.VoiceSignalResult) {
	if cb.OnVoiceResult != nil {
		safeInvoke(func() { cb.OnVoiceResult(id, r) })
	}
}

func (cb Callbacks) failure(id string, p Phase, err error) {
	if cb.OnError != nil {
		safeInvoke(func() { cb.OnError(id, p, err) })
	}
}

func safeInvoke(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}

// Progress describes how far the current capture phase has advanced.
// Fraction is the larger of sample progress and elapsed-time progress,
// so it keeps moving even when the signal is starved.
type Progress struct {
	Phase    Phase   `json:"phase"`
	Fraction float64 `json:"fraction"`
	Samples  int     `json:"samples"`
	Target   int     `json:"target"`
}

// Summary aggregates everything one session produced.
type Summary struct {
	SessionID  string                     `json:"session_id"`
	Heart      *measure.HeartSignalResult `json:"heart,omitempty"`
	Voice      *measure.VoiceSignalResult `json:"voice,omitempty"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Final      Phase                      `json:"final_phase"`
}
