package orchestration

type SessionState int32

const (
	StateIdle SessionState = iota
	StateListening
	StateAwaitingResponse
	StateSpeaking
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateSpeaking:
		return "speaking"
	}
	return "unknown"
}

// Live reports whether a session is running in this state.
func (s SessionState) Live() bool {
	return s != StateIdle
}
