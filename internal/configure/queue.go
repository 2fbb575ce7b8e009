package configure

import (
	"github.com/1broseidon/winsync/internal/windowstate"
)

const (
	// NoSerial marks a request that does not answer a compositor configure.
	NoSerial int64 = -1
	// NoFrame marks a request whose transition needs no new frame.
	NoFrame int64 = -1

	// DefaultMaxOutstanding bounds applied-but-unlatched requests.
	DefaultMaxOutstanding = 3
)

// Request is one entry of the in-flight queue.
type Request struct {
	State   windowstate.State `json:"state"`
	Serial  int64             `json:"serial"`
	VizSeq  int64             `json:"viz_seq"`
	Applied bool              `json:"applied"`
}

// Queue is the ordered list of requested states that have not latched yet.
// Applied entries always form a prefix; at most the tail is unapplied.
type Queue struct {
	entries []Request

	// highest is the newest serial ever pushed; valid when hasSerial.
	highest   int64
	hasSerial bool
}

// Len returns the number of queued requests.
func (q *Queue) Len() int { return len(q.entries) }

// Tail returns the newest request, or nil when empty.
func (q *Queue) Tail() *Request {
	if len(q.entries) == 0 {
		return nil
	}
	return &q.entries[len(q.entries)-1]
}

// Outstanding counts entries that were applied and wait for latching.
func (q *Queue) Outstanding() int {
	n := 0
	for _, r := range q.entries {
		if r.Applied {
			n++
		}
	}
	return n
}

// Push records state, coalescing with the tail where possible. It returns
// the entry that now carries the request.
//
// An unapplied tail is overwritten. An applied tail with the same state only
// has its serial raised. Otherwise a new entry is appended; a request without
// a serial inherits the newest serial pushed so far, also after the queue has
// drained, so serials never go backwards.
func (q *Queue) Push(state windowstate.State, serial int64) Request {
	if serial != NoSerial {
		if !q.hasSerial || serial > q.highest {
			q.highest = serial
		}
		q.hasSerial = true
	}

	tail := q.Tail()
	switch {
	case tail != nil && !tail.Applied:
		tail.State = state
		tail.Serial = max(tail.Serial, serial)
		return *tail
	case tail != nil && tail.State == state:
		tail.Serial = max(tail.Serial, serial)
		return *tail
	}

	if serial == NoSerial && q.hasSerial {
		serial = q.highest
	}
	q.entries = append(q.entries, Request{State: state, Serial: serial, VizSeq: NoFrame})
	return q.entries[len(q.entries)-1]
}

// Latchable returns how many leading entries are satisfied by seq. The walk
// stops at the first entry that is unapplied or still waiting for its frame.
func (q *Queue) Latchable(seq int64) int {
	n := 0
	for _, r := range q.entries {
		if !r.Applied {
			break
		}
		if r.VizSeq != NoFrame && seq != SeqProducerLost && r.VizSeq > seq {
			break
		}
		n++
	}
	return n
}

// PopFront removes and returns the first n entries.
func (q *Queue) PopFront(n int) []Request {
	out := make([]Request, n)
	copy(out, q.entries[:n])
	q.entries = append(q.entries[:0], q.entries[n:]...)
	return out
}

// Snapshot returns a copy of the queue contents, oldest first.
func (q *Queue) Snapshot() []Request {
	out := make([]Request, len(q.entries))
	copy(out, q.entries)
	return out
}
