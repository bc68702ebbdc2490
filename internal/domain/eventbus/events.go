package eventbus

// Topics published during a measurement session.
const (
	// Session lifecycle
	EventSessionStarted   = "session:started"
	EventSessionPhase     = "session:phase"
	EventSessionCancelled = "session:cancelled"
	EventSessionCompleted = "session:completed"
	EventSessionError     = "session:error"

	// Analysis results
	EventHeartResult = "heart:result"
	EventVoiceResult = "voice:result"

	// System events
	EventSystemError = "system:error"
	EventSystemInfo  = "system:info"
)

// Event payloads.

type SessionEventData struct {
	SessionID string  `json:"session_id"`
	Phase     string  `json:"phase"`
	Progress  float64 `json:"progress,omitempty"`
}

type ResultEventData struct {
	SessionID string      `json:"session_id"`
	Kind      string      `json:"kind"` // heart or voice
	Result    interface{} `json:"result"`
}

type ErrorEventData struct {
	SessionID string `json:"session_id,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Message   string `json:"message"`
}

type SystemEventData struct {
	Level   string      `json:"level"` // error, warn, info
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
