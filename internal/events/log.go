package events

import "sync"

// Log is the ordered in-process record of emitted events. Append assigns
// monotonically increasing sequence numbers under a single lock, so the
// order of the log is the order in which events were committed.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

func NewLog() *Log {
	return &Log{}
}

// Append stamps the event with the next sequence number and records it.
// The stamped event is returned so sinks receive the same copy the log holds.
func (l *Log) Append(event Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.Seq = uint64(len(l.events)) + 1
	l.events = append(l.events, event)
	return event
}

// List returns all recorded events in emission order.
func (l *Log) List() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event{}, l.events...)
}

// Since returns events with sequence numbers greater than seq, in order.
// Pass 0 for the full log.
func (l *Log) Since(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq >= uint64(len(l.events)) {
		return nil
	}
	return append([]Event{}, l.events[seq:]...)
}

// Len reports the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
