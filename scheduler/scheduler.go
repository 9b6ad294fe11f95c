// Package scheduler implements the message queue/mailbox/waitlist/stash
// state machine and the per-block journal applier (spec.md §4.6, component
// C6), grounded on the teacher's core/parallel/executor.go per-block driver
// loop shape and sysaction's Handler/Registry dispatch pattern for journal
// note application.
package scheduler

import (
	"errors"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/costs"
	"github.com/gear-tech/gear-sub008/gastree"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/log"
	"github.com/gear-tech/gear-sub008/taskpool"
)

var logger = log.Root().New("module", "scheduler")

// Lock slots within a gas-tree node's lock[4] (spec.md §3 "Gas tree":
// "lock[4]"), assigned one per holding structure that can lock value.
const (
	LockMailbox = iota
	LockWaitlist
	LockReservation
	LockDispatchStash
)

// ProgramStatus classifies a destination program for dispatch routing
// (spec.md §3 "Program state": "Terminal states: Exited(heir) and
// Terminated").
type ProgramStatus uint8

const (
	StatusActive ProgramStatus = iota
	StatusExited
	StatusTerminated
)

// Programs resolves a destination actor's current status and its heir,
// needed to route a popped dispatch to the execution driver or a builtin
// actor (spec.md §4.6 step 2b). The concrete store lives in package storage.
type Programs interface {
	Status(actor common.ActorId) ProgramStatus
	Heir(actor common.ActorId) common.ActorId
	// IsProgram reports whether actor is a program (routed through the
	// queue) as opposed to a user account (routed to the mailbox).
	IsProgram(actor common.ActorId) bool
}

// PageStore applies the durable effects of UpdatePage/UpdateAllocations/
// StoreNewPrograms notes (spec.md §6: storage as a typed map, delegated
// to package storage's concrete implementation).
type PageStore interface {
	ApplyPage(program common.ActorId, page uint32, data []byte) error
	ApplyAllocations(program common.ActorId, pages []uint32) error
	CreateProgram(actor common.ActorId, code common.CodeId) error
	Exit(actor common.ActorId, heir common.ActorId) error
}

// Ledger applies SendValue transfers between actors (spec.md §3 "Message":
// "value: u128"); out of scope for this module beyond the typed interface
// (spec.md §1 non-goal: the settlement-layer token ledger itself).
type Ledger interface {
	Transfer(from, to common.ActorId, value uint64) error
}

// Dispatcher invokes the execution driver (package executor) or a builtin
// actor (package builtin) for one popped dispatch and returns its journal
// (spec.md §4.6 step 2d). Injected so the block loop does not depend on how
// a dispatch is run; DriverDispatcher (driver_dispatcher.go) is the
// executor-backed implementation.
type Dispatcher interface {
	Dispatch(d journal.StoredDispatch, allowance *costs.GasAllowanceCounter) ([]journal.Note, error)
}

var ErrBlockAborted = errors.New("scheduler: journal handler failure aborted block processing")

// Scheduler owns the queue/mailbox/waitlist/stash and the gas tree and
// task pool they interact with, and drives one block's processing loop
// (spec.md §4.6).
type Scheduler struct {
	Queue    *Queue
	Mailbox  *Mailbox
	Waitlist *Waitlist
	Stash    *Stash
	GasTree  *gastree.Tree
	Tasks    *taskpool.Pool

	Programs   Programs
	Store      PageStore
	Ledger     Ledger
	Dispatcher Dispatcher
	Schedule   *costs.Schedule

	MailboxPerBlockCost    uint64
	MailboxThresholdAmount uint64

	BlockHeight uint64

	// inFlight tracks the StoredDispatch of a message currently being
	// executed, so applyWaitDispatch can move it into the waitlist: the
	// WaitDispatch note itself only carries identifiers, not the dispatch.
	inFlight map[common.MessageId]journal.StoredDispatch
}

// New constructs a Scheduler over fresh empty structures; callers restore
// Queue/Mailbox/Waitlist/Stash/GasTree/Tasks from storage when resuming an
// existing chain rather than starting from New's empty state.
func New(programs Programs, store PageStore, ledger Ledger, dispatcher Dispatcher, schedule *costs.Schedule) *Scheduler {
	return &Scheduler{
		Queue:      NewQueue(),
		Mailbox:    NewMailbox(),
		Waitlist:   NewWaitlist(),
		Stash:      NewStash(),
		GasTree:    gastree.New(),
		Tasks:      taskpool.New(),
		Programs:   programs,
		Store:      store,
		Ledger:     ledger,
		Dispatcher: dispatcher,
		Schedule:   schedule,
		inFlight:   make(map[common.MessageId]journal.StoredDispatch),
	}
}

// BlockResult summarizes one ProcessBlock call for observability/testing.
type BlockResult struct {
	Dequeued  uint64
	Notes     []journal.Note
	StoppedEarly bool
}

// ProcessBlock runs spec.md §4.6's three-step per-block loop: drain the
// queue under the allowance, apply every journal note, then fire due
// task-pool entries.
func (s *Scheduler) ProcessBlock(blockHeight uint64, allowance *costs.GasAllowanceCounter) (BlockResult, error) {
	s.BlockHeight = blockHeight
	var result BlockResult

	// Step 1-2: drain the queue.
	for allowance.Left() > 0 && !s.Queue.Empty() {
		d, ok := s.Queue.PopFront()
		if !ok {
			break
		}
		result.Dequeued++

		status := s.Programs.Status(d.Message.Destination)
		if status != StatusActive {
			s.inFlight[d.Message.Id] = d
			notes := s.autoReplyNotes(d, status)
			if err := s.applyAll(notes); err != nil {
				return result, err
			}
			result.Notes = append(result.Notes, notes...)
			continue
		}

		if allowance.ChargeIfEnough(s.Schedule.MessageProcessingFixed) == costs.NotEnough {
			s.Queue.PushFront(d)
			note := journal.Note{Kind: journal.StopProcessing, Message: d.Message.Id}
			if err := s.Apply(note); err != nil {
				return result, err
			}
			result.Notes = append(result.Notes, note)
			result.StoppedEarly = true
			break
		}

		s.inFlight[d.Message.Id] = d
		notes, err := s.Dispatcher.Dispatch(d, allowance)
		if err != nil {
			delete(s.inFlight, d.Message.Id)
			logger.Error("dispatch failed", "message", d.Message.Id, "err", err)
			return result, err
		}
		if err := s.applyAll(notes); err != nil {
			return result, err
		}
		delete(s.inFlight, d.Message.Id) // no-op if MessageConsumed already removed it
		result.Notes = append(result.Notes, notes...)
	}

	// Step 3: fire due task-pool entries.
	fired := s.Tasks.DrainUpTo(blockHeight)
	for _, task := range fired {
		notes, err := s.fireTask(task)
		if err != nil {
			return result, err
		}
		if err := s.applyAll(notes); err != nil {
			return result, err
		}
		result.Notes = append(result.Notes, notes...)
	}

	return result, nil
}

func (s *Scheduler) applyAll(notes []journal.Note) error {
	for _, n := range notes {
		if err := s.Apply(n); err != nil {
			return err
		}
	}
	return nil
}

// autoReplyNotes builds the notes for a dispatch whose destination is
// exited or terminated (spec.md §4.6 step 2b): GasBurned for the fixed
// error-reply cost, a SendValue of the message's value to the destination's
// heir when that value is non-zero, and MessageConsumed with OutcomeTrap.
// No error-reply message is sent back to the source.
func (s *Scheduler) autoReplyNotes(d journal.StoredDispatch, status ProgramStatus) []journal.Note {
	notes := []journal.Note{
		{Kind: journal.GasBurned, Message: d.Message.Id, GasAmount: s.Schedule.ErrorReplyFixed},
	}
	if d.Message.Value > 0 {
		heir := s.Programs.Heir(d.Message.Destination)
		notes = append(notes, journal.Note{
			Kind: journal.SendValue, From: d.Message.Destination, To: heir, Value: d.Message.Value,
		})
	}
	notes = append(notes, journal.Note{Kind: journal.MessageConsumed, Message: d.Message.Id, Outcome: journal.OutcomeTrap})
	return notes
}
