package matching

import "fmt"

// EventLog is an append-only, sequence-ordered record of book
// mutations. The caller assigns strictly increasing sequence numbers;
// the log enforces append order and exposes the latest value.
//
// Not safe for concurrent use; the store serializes access.
type EventLog struct {
	events   []MatchingEvent
	sequence uint64
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records the event and advances the current sequence. An event
// that does not move the sequence forward is an invariant violation,
// including the first append after SetSequence.
func (l *EventLog) Append(ev MatchingEvent) error {
	if ev.Sequence <= l.sequence {
		return fmt.Errorf("%w: have %d, got %d", ErrSequenceRegression, l.sequence, ev.Sequence)
	}
	l.events = append(l.events, ev)
	l.sequence = ev.Sequence
	return nil
}

// GetFrom returns all events with sequence >= from, in append order.
func (l *EventLog) GetFrom(from uint64) []MatchingEvent {
	var out []MatchingEvent
	for _, ev := range l.events {
		if ev.Sequence >= from {
			out = append(out, ev)
		}
	}
	return out
}

func (l *EventLog) Sequence() uint64 {
	return l.sequence
}

func (l *EventLog) Len() int {
	return len(l.events)
}

// Clear resets the log to empty with sequence zero.
func (l *EventLog) Clear() {
	l.events = nil
	l.sequence = 0
}

// SetSequence overrides the counter, used when bootstrapping from a
// snapshot whose suffix will be replayed.
func (l *EventLog) SetSequence(seq uint64) {
	l.sequence = seq
}
