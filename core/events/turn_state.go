package events

// KindTurnCancelled identifies turn cancellation.
const KindTurnCancelled Kind = "turn_state.cancelled"

// TurnCancelled marks cancellation of the current turn. Reason is "stop" or
// "reset".
type TurnCancelled struct {
	Base
	Reason string
}

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled(reason string) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled), Reason: reason}
}
