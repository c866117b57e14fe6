package transport

import "sync"

// Event is one durably recorded outbound payload. Seq is strictly increasing
// per session, starting at 1, with no gaps among appended entries.
type Event struct {
	Seq     uint64
	Payload []byte
}

// EventLog is the per-session append-only event sequence enabling replay
// after reconnect. Retention is bounded: the log keeps at most limit entries
// and evicts the oldest beyond that, so a reconnect with a marker older than
// the retained window gets an explicit gap signal rather than a silent
// partial replay.
type EventLog struct {
	mu      sync.Mutex
	entries []Event
	nextSeq uint64
	limit   int
	closed  bool
}

// NewEventLog creates an EventLog retaining at most limit entries.
// A non-positive limit falls back to DefaultEventRetention.
func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = DefaultEventRetention
	}
	return &EventLog{nextSeq: 1, limit: limit}
}

// DefaultEventRetention is the per-session retained-entry bound.
const DefaultEventRetention = 1024

// Append records a payload and returns its sequence number.
// Returns ErrLogClosed after Close; no appends are accepted once the owning
// session has terminated.
func (l *EventLog) Append(payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrLogClosed
	}

	seq := l.nextSeq
	l.nextSeq++
	l.entries = append(l.entries, Event{Seq: seq, Payload: payload})
	if len(l.entries) > l.limit {
		l.entries = l.entries[len(l.entries)-l.limit:]
	}
	return seq, nil
}

// Replay returns every retained entry with sequence number strictly greater
// than after, in ascending order. gap is true when entries between after and
// the oldest retained one have been evicted; the returned slice then starts
// at the oldest retained entry and the caller must surface the discontinuity
// instead of passing the replay off as complete.
func (l *EventLog) Replay(after uint64) (events []Event, gap bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replayLocked(after)
}

func (l *EventLog) replayLocked(after uint64) (events []Event, gap bool) {
	if len(l.entries) == 0 {
		return nil, false
	}

	oldest := l.entries[0].Seq
	if after+1 < oldest {
		gap = true
	}

	for _, e := range l.entries {
		if e.Seq > after {
			events = append(events, e)
		}
	}
	return events, gap
}

// Latest returns the sequence number of the most recently appended entry,
// zero when nothing has been appended.
func (l *EventLog) Latest() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq - 1
}

// Close releases the log. Subsequent appends fail with ErrLogClosed;
// replay of already-retained entries keeps working during teardown.
func (l *EventLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}
