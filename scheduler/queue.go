package scheduler

import (
	"container/list"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
)

// Queue is the doubly-linked message queue (spec.md §3 "Message queue"):
// O(1) lookup by id, O(1) pop-front/push-back/push-front.
type Queue struct {
	l       *list.List
	byID    map[common.MessageId]*list.Element
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{l: list.New(), byID: make(map[common.MessageId]*list.Element)}
}

// PushBack enqueues d at the tail.
func (q *Queue) PushBack(d journal.StoredDispatch) {
	e := q.l.PushBack(d)
	q.byID[d.Message.Id] = e
}

// PushFront requeues d at the head (used for StopProcessing re-queue).
func (q *Queue) PushFront(d journal.StoredDispatch) {
	e := q.l.PushFront(d)
	q.byID[d.Message.Id] = e
}

// PopFront removes and returns the head dispatch, or ok=false if empty.
func (q *Queue) PopFront() (journal.StoredDispatch, bool) {
	e := q.l.Front()
	if e == nil {
		return journal.StoredDispatch{}, false
	}
	q.l.Remove(e)
	d := e.Value.(journal.StoredDispatch)
	delete(q.byID, d.Message.Id)
	return d, true
}

// Lookup returns the dispatch with the given id without removing it.
func (q *Queue) Lookup(id common.MessageId) (journal.StoredDispatch, bool) {
	e, ok := q.byID[id]
	if !ok {
		return journal.StoredDispatch{}, false
	}
	return e.Value.(journal.StoredDispatch), true
}

// Len returns the number of queued dispatches.
func (q *Queue) Len() int { return q.l.Len() }

// Empty reports whether the queue has no dispatches.
func (q *Queue) Empty() bool { return q.l.Len() == 0 }
