package orchestration

import "errors"

var (
	// ErrRecognizerUnavailable is returned by Start when capture cannot begin.
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
	// ErrGeneratorFailure is reported when the response generator fails or
	// returns an empty reply.
	ErrGeneratorFailure = errors.New("response generator failure")
	// ErrStaleCompletion marks a completion issued under an earlier generation.
	// It is only logged.
	ErrStaleCompletion = errors.New("stale completion")
	ErrSessionActive   = errors.New("session is active")
	// ErrStartCancelled is returned by Start when Stop or Reset arrived while
	// the session was still starting.
	ErrStartCancelled  = errors.New("session start cancelled")
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrClosed          = errors.New("orchestrator closed")
)
