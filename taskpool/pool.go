// Package taskpool implements the time-keyed scheduled-task set (spec.md
// §4.8, component C8): an ordered map of (block_height, ScheduledTask)
// drained in block order as the chain advances.
package taskpool

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set"

	"github.com/gear-tech/gear-sub008/common"
)

// Kind tags a ScheduledTask's variant (spec.md §3 "Task pool").
type Kind uint8

const (
	WakeMessage Kind = iota
	RemoveFromMailbox
	RemoveGasReservation
	SendUserMessage
	SendDispatch
	PauseProgram
)

// Task is one scheduled entry. Only the fields relevant to Kind are set.
type Task struct {
	Kind Kind

	Program common.ActorId // WakeMessage, RemoveGasReservation, PauseProgram
	Owner   common.ActorId // RemoveFromMailbox
	Message common.MessageId

	ToMailbox bool // SendUserMessage
}

// digest is the ordered-map key's non-height half. Tasks are compared
// structurally, so two identical tasks at the same height collapse to one
// entry (add is idempotent), matching spec.md's "(block_height, TaskDigest)".
type digest Task

// Pool is the ordered (block_height, Task) map (spec.md §4.8).
type Pool struct {
	mu    sync.Mutex
	tasks map[uint64]map[digest]struct{}
}

// New returns an empty task pool.
func New() *Pool {
	return &Pool{tasks: make(map[uint64]map[digest]struct{})}
}

// ErrZeroDuration is returned by Add when the expected duration (blocks
// from now until the task fires) is zero, which spec.md §4.8 requires
// add to reject rather than schedule an already-due task silently.
var ErrZeroDuration = zeroDurationError{}

type zeroDurationError struct{}

func (zeroDurationError) Error() string { return "taskpool: expected duration must be non-zero" }

// Add schedules t to fire at blockHeight. currentBlock is used only to
// validate that blockHeight is strictly in the future (duration > 0).
func (p *Pool) Add(currentBlock, blockHeight uint64, t Task) error {
	if blockHeight <= currentBlock {
		return ErrZeroDuration
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.tasks[blockHeight]
	if !ok {
		bucket = make(map[digest]struct{})
		p.tasks[blockHeight] = bucket
	}
	bucket[digest(t)] = struct{}{}
	return nil
}

// Delete removes t from blockHeight's bucket. Idempotent and silent if
// absent (spec.md §4.8: "delete is idempotent and silent").
func (p *Pool) Delete(blockHeight uint64, t Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.tasks[blockHeight]
	if !ok {
		return
	}
	delete(bucket, digest(t))
	if len(bucket) == 0 {
		delete(p.tasks, blockHeight)
	}
}

// DrainUpTo removes and returns every task scheduled at block height ≤
// upToBlock, in ascending block-height order (ties broken by an
// arbitrary-but-stable struct ordering, since within one height tasks are
// a set, not a sequence).
func (p *Pool) DrainUpTo(upToBlock uint64) []Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	var heights []uint64
	for h := range p.tasks {
		if h <= upToBlock {
			heights = append(heights, h)
		}
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	var out []Task
	for _, h := range heights {
		bucket := p.tasks[h]
		var ds []digest
		for d := range bucket {
			ds = append(ds, d)
		}
		sort.Slice(ds, func(i, j int) bool { return lessDigest(ds[i], ds[j]) })
		for _, d := range ds {
			out = append(out, Task(d))
		}
		delete(p.tasks, h)
	}
	return out
}

func lessDigest(a, b digest) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Program != b.Program {
		return a.Program.String() < b.Program.String()
	}
	if a.Owner != b.Owner {
		return a.Owner.String() < b.Owner.String()
	}
	if a.Message != b.Message {
		return a.Message.String() < b.Message.String()
	}
	return !a.ToMailbox && b.ToMailbox
}

// FiredSet is an optional helper set callers may use to guard
// against double-firing a task that both a direct caller and DrainUpTo
// might otherwise dispatch twice in the same block; kept here as a thin
// wrapper over golang-set rather than a bespoke map[Task]struct{}, mirroring
// the teacher pack's use of mapset for membership sets.
type FiredSet struct {
	set mapset.Set
}

// NewFiredSet returns an empty per-block firing guard.
func NewFiredSet() *FiredSet { return &FiredSet{set: mapset.NewSet()} }

// MarkAndCheck adds t and reports whether it was already present.
func (f *FiredSet) MarkAndCheck(t Task) (alreadyFired bool) {
	d := digest(t)
	if f.set.Contains(d) {
		return true
	}
	f.set.Add(d)
	return false
}
