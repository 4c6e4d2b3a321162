package dictation

import "sync"

// Log is append-only except for the most recent user turn, which is replaced
// while it is open or still a placeholder. Readers may run concurrently with
// the single writer.
type Log struct {
	mu        sync.RWMutex
	turns     []Turn
	observers map[int]func([]Turn)
	nextID    int
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{observers: map[int]func([]Turn){}}
}

// AppendOrReplaceUser sets the text of the turn being dictated. A trailing
// open user turn or placeholder is removed first, so the result is always a
// new open user turn at the end of the log.
func (l *Log) AppendOrReplaceUser(text string, marker int) Turn {
	l.mu.Lock()
	if i, ok := l.replaceableLocked(); ok {
		l.turns = l.turns[:i]
	}
	turn := newTurn(SpeakerUser, text, marker, true)
	l.turns = append(l.turns, turn)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snapshot)
	return turn
}

// CloseUserTurn closes the trailing open user turn with finalText, dropping it
// when finalText is empty, and appends the placeholder the next user turn
// starts from. It returns the placeholder.
func (l *Log) CloseUserTurn(finalText string, totalSegments int) Turn {
	l.mu.Lock()
	if i, ok := l.replaceableLocked(); ok {
		switch {
		case finalText == "":
			l.turns = append(l.turns[:i], l.turns[i+1:]...)
		default:
			l.turns[i].Text = finalText
			l.turns[i].Open = false
		}
	} else if finalText != "" {
		turn := newTurn(SpeakerUser, finalText, 0, false)
		l.turns = append(l.turns, turn)
	}

	placeholder := newTurn(SpeakerUser, "", totalSegments, false)
	l.turns = append(l.turns, placeholder)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snapshot)
	return placeholder
}

// AppendRemote appends a closed turn of the remote party.
func (l *Log) AppendRemote(text string) Turn {
	l.mu.Lock()
	turn := newTurn(SpeakerRemote, text, 0, false)
	l.turns = append(l.turns, turn)
	snapshot := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snapshot)
	return turn
}

// Clear drops every turn.
func (l *Log) Clear() {
	l.mu.Lock()
	l.turns = nil
	l.mu.Unlock()

	l.notify([]Turn{})
}

// Snapshot returns a copy of all turns, placeholders included.
func (l *Log) Snapshot() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// Visible returns the turns without placeholders.
func (l *Log) Visible() []Turn {
	return VisibleTurns(l.Snapshot())
}

// Last returns the most recent turn.
func (l *Log) Last() (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.turns) == 0 {
		return Turn{}, false
	}
	return l.turns[len(l.turns)-1], true
}

// Len counts turns, placeholders included.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Subscribe registers an observer called after every committed mutation.
func (l *Log) Subscribe(observer func([]Turn)) (unsubscribe func()) {
	if observer == nil {
		return func() {}
	}

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.observers[id] = observer
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.observers, id)
			l.mu.Unlock()
		})
	}
}

// VisibleTurns filters placeholders out of turns.
func VisibleTurns(turns []Turn) []Turn {
	visible := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if turn.IsPlaceholder() {
			continue
		}
		visible = append(visible, turn)
	}
	return visible
}

// replaceableLocked finds the trailing user turn that may still change.
func (l *Log) replaceableLocked() (int, bool) {
	if len(l.turns) == 0 {
		return 0, false
	}

	i := len(l.turns) - 1
	last := l.turns[i]
	if last.Speaker != SpeakerUser || !(last.Open || last.IsPlaceholder()) {
		return 0, false
	}
	return i, true
}

func (l *Log) snapshotLocked() []Turn {
	return append([]Turn(nil), l.turns...)
}

func (l *Log) notify(snapshot []Turn) {
	l.mu.RLock()
	observers := make([]func([]Turn), 0, len(l.observers))
	for _, observer := range l.observers {
		observers = append(observers, observer)
	}
	l.mu.RUnlock()

	for _, observer := range observers {
		observer(snapshot)
	}
}
