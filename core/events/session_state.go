package events

// KindSessionStateChanged identifies orchestrator state transitions.
const KindSessionStateChanged Kind = "session_state.changed"

// SessionStateChanged carries the previous and the new orchestrator state.
type SessionStateChanged struct {
	Base
	From string
	To   string
}

// NewSessionStateChanged creates a state transition event.
func NewSessionStateChanged(from, to string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), From: from, To: to}
}
