package scheduler

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
)

type waitlistKey struct {
	Program common.ActorId
	Message common.MessageId
}

// WaitlistEntry is a held dispatch plus its waiting interval
// (spec.md §3 "Waitlist"). Locked records the gas-tree amount locked under
// LockWaitlist for this hold, so waking can unlock exactly what remains.
type WaitlistEntry struct {
	Dispatch journal.StoredDispatch
	Interval Interval
	Locked   uint64
}

// Waitlist is the (program, message) → (StoredDispatch, Interval) map
// (spec.md §3 "Waitlist").
type Waitlist struct {
	entries map[waitlistKey]WaitlistEntry
}

// NewWaitlist returns an empty waitlist.
func NewWaitlist() *Waitlist {
	return &Waitlist{entries: make(map[waitlistKey]WaitlistEntry)}
}

// Insert holds d for program until the given interval ends (or
// indefinitely if Interval.Finish is zero), recording the amount locked
// in the gas tree for this hold.
func (w *Waitlist) Insert(program common.ActorId, d journal.StoredDispatch, iv Interval, locked uint64) {
	w.entries[waitlistKey{program, d.Message.Id}] = WaitlistEntry{Dispatch: d, Interval: iv, Locked: locked}
}

// Remove deletes and returns the (program, message) entry if present
// (spec.md §4.6 "Wake": "if the target is in the waitlist, remove it").
func (w *Waitlist) Remove(program common.ActorId, id common.MessageId) (WaitlistEntry, bool) {
	k := waitlistKey{program, id}
	e, ok := w.entries[k]
	if ok {
		delete(w.entries, k)
	}
	return e, ok
}

// Contains reports whether (program, id) is currently held.
func (w *Waitlist) Contains(program common.ActorId, id common.MessageId) bool {
	_, ok := w.entries[waitlistKey{program, id}]
	return ok
}

// Len returns the number of waitlisted dispatches.
func (w *Waitlist) Len() int { return len(w.entries) }
