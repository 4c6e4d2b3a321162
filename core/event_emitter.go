package orchestration

import events "github.com/koscakluka/ema-rehearse/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newEventEmitter chains handler after the already configured emitter.
func newEventEmitter(previous eventEmitter, handler func(events.Event)) eventEmitter {
	if handler == nil {
		return previous
	}
	if previous == nil {
		previous = noopEventEmitter
	}

	return func(event events.Event) {
		previous(event)
		handler(event)
	}
}

func (o *Orchestrator) emitEvent(event events.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event handler panicked", "kind", event.Kind(), "panic", recovered)
		}
	}()

	o.emit(event)
}
