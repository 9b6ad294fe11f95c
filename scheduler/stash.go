package scheduler

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
)

// StashEntry is a delayed dispatch plus the interval it is held for
// (spec.md §3 "Dispatch stash").
type StashEntry struct {
	Dispatch journal.StoredDispatch
	Interval Interval
}

// Stash is the MessageId → (StoredDispatch, Interval) map backing delayed
// dispatch (spec.md §3 "Dispatch stash", §4.6 "send_delayed_dispatch").
type Stash struct {
	entries map[common.MessageId]StashEntry
}

// NewStash returns an empty dispatch stash.
func NewStash() *Stash {
	return &Stash{entries: make(map[common.MessageId]StashEntry)}
}

// Insert holds d until its expiration interval elapses.
func (s *Stash) Insert(d journal.StoredDispatch, iv Interval) {
	s.entries[d.Message.Id] = StashEntry{Dispatch: d, Interval: iv}
}

// Remove deletes and returns the stashed dispatch if present.
func (s *Stash) Remove(id common.MessageId) (StashEntry, bool) {
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	return e, ok
}

// Len returns the number of stashed dispatches.
func (s *Stash) Len() int { return len(s.entries) }
