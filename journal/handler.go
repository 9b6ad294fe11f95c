package journal

// Handler applies one Note to scheduler state (spec.md §4.6's
// JournalHandler). Implemented by the scheduler (component C6); the
// execution driver (C5) and builtin actors (C12) only ever produce Notes,
// never apply them.
type Handler interface {
	Apply(note Note) error
}

// Apply applies every note in order via h. Journal application is atomic
// per note (spec.md §4.6); a handler error aborts the remaining notes and
// is treated by the caller as a consistency bug (spec.md §7).
//
// Callers MUST order notes so that MessageConsumed trails every other note
// for the same message (spec.md §4.5 ordering guarantee); Apply does not
// reorder, it only applies in the given order.
func Apply(h Handler, notes []Note) error {
	for _, n := range notes {
		if err := h.Apply(n); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOrdering checks the spec.md §4.5 ordering guarantee: for any
// message id appearing as the subject of a MessageConsumed note, that note
// must be the last note mentioning that message id. Used by tests and by
// the builtin registry's journal-shape check before returning a journal.
func ValidateOrdering(notes []Note) bool {
	consumedAt := make(map[[32]byte]int)
	for i, n := range notes {
		if n.Kind == MessageConsumed {
			consumedAt[n.Message] = i
		}
	}
	for mid, idx := range consumedAt {
		for j := idx + 1; j < len(notes); j++ {
			if notes[j].Message == mid {
				return false
			}
		}
	}
	return true
}
