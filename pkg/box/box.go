// Package box is the shared work queue of a run.
//
// Every record is in exactly one state at a time: queued for a pipeline
// attempt, escalated to a human, checked out by a worker, or settled.
// A single mutex covers all of it, so a record a worker holds is always
// counted as outstanding and [Box.IsDone] cannot see a transient gap
// between a take and the following re-file.
package box

import (
	"errors"
	"sync"

	"github.com/matzehuels/jarprobe/pkg/dependency"
)

// ErrNotCheckedOut is returned by [Box.Settle] for a record no worker
// holds.
var ErrNotCheckedOut = errors.New("box: record is not checked out")

// State is where a record is.
type State int

const (
	Queued State = iota + 1
	Escalated
	CheckedOut
	Settled
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Escalated:
		return "escalated"
	case CheckedOut:
		return "checked-out"
	case Settled:
		return "settled"
	}
	return "unknown"
}

type slot struct {
	rec   *dependency.Record
	state State
	// next is applied by Settle; zero means Settled.
	next State
}

// Box tracks records by content hash. The zero value is not usable; use
// [New].
type Box struct {
	mu         sync.Mutex
	slots      map[string]*slot
	queued     map[string]*slot
	escalated  map[string]*slot
	checkedOut int
}

// New returns a Box holding recs as queued.
func New(recs ...*dependency.Record) *Box {
	b := &Box{
		slots:     make(map[string]*slot),
		queued:    make(map[string]*slot),
		escalated: make(map[string]*slot),
	}
	for _, r := range recs {
		b.EnqueueProcessing(r)
	}
	return b
}

// EnqueueProcessing queues rec for a pipeline attempt.
func (b *Box) EnqueueProcessing(rec *dependency.Record) { b.enqueue(rec, Queued) }

// EnqueueEscalation queues rec for a human decision.
func (b *Box) EnqueueEscalation(rec *dependency.Record) { b.enqueue(rec, Escalated) }

// enqueue inserts an unknown record, or records the disposition of a
// checked-out one for Settle. A record that is already queued, escalated
// or settled is left alone.
func (b *Box) enqueue(rec *dependency.Record, to State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[rec.Hash]
	if !ok {
		s = &slot{rec: rec}
		b.slots[rec.Hash] = s
		b.place(s, to)
		return
	}
	if s.state == CheckedOut {
		s.next = to
	}
}

func (b *Box) place(s *slot, to State) {
	s.state = to
	switch to {
	case Queued:
		b.queued[s.rec.Hash] = s
	case Escalated:
		b.escalated[s.rec.Hash] = s
	}
}

// TakeProcessing checks out an arbitrary queued record.
func (b *Box) TakeProcessing() (*dependency.Record, bool) { return b.take(b.queued) }

// TakeEscalation checks out an arbitrary escalated record.
func (b *Box) TakeEscalation() (*dependency.Record, bool) { return b.take(b.escalated) }

func (b *Box) take(from map[string]*slot) (*dependency.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for h, s := range from {
		delete(from, h)
		s.state = CheckedOut
		s.next = 0
		b.checkedOut++
		return s.rec, true
	}
	return nil, false
}

// Settle ends the checkout of rec. A disposition enqueued during the
// checkout is applied; otherwise rec is settled for good.
func (b *Box) Settle(rec *dependency.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[rec.Hash]
	if !ok || s.state != CheckedOut {
		return ErrNotCheckedOut
	}
	b.checkedOut--
	next := s.next
	s.next = 0
	if next == 0 {
		next = Settled
	}
	b.place(s, next)
	return nil
}

// IsDone reports whether nothing is queued, escalated or checked out.
func (b *Box) IsDone() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queued) == 0 && len(b.escalated) == 0 && b.checkedOut == 0
}

// DrainEscalationIntoProcessing moves every escalated record back to the
// processing queue and returns how many moved.
func (b *Box) DrainEscalationIntoProcessing() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.escalated)
	for h, s := range b.escalated {
		delete(b.escalated, h)
		b.place(s, Queued)
	}
	return n
}

// State returns the state of the record with the given hash.
func (b *Box) State(hash string) (State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.slots[hash]
	if !ok {
		return 0, false
	}
	return s.state, true
}

// Stats is a point-in-time count per state.
type Stats struct {
	Total      int
	Queued     int
	Escalated  int
	CheckedOut int
	Settled    int
}

// Stats returns the current counts.
func (b *Box) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Stats{
		Total:      len(b.slots),
		Queued:     len(b.queued),
		Escalated:  len(b.escalated),
		CheckedOut: b.checkedOut,
	}
	st.Settled = st.Total - st.Queued - st.Escalated - st.CheckedOut
	return st
}
