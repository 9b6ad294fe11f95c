package scheduler

import (
	"fmt"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/gastree"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/taskpool"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// stashChildId and mailboxChildId derive a fresh gas-tree node key for the
// cut/split node a delayed send or mailbox insertion creates, since the
// gas tree has no "generate me a fresh key" primitive of its own (spec.md
// §4.7 only specifies the operations, not key derivation).
func stashChildId(msg common.MessageId) common.Hash {
	return xcrypto.Keccak256Hash(msg.Bytes(), []byte("dispatch-stash"))
}

func mailboxChildId(msg common.MessageId) common.Hash {
	return xcrypto.Keccak256Hash(msg.Bytes(), []byte("mailbox"))
}

// applySendDispatch routes a SendDispatch/SendSignal note to the queue
// (immediate, program destination), the mailbox (immediate, user
// destination), or the dispatch stash (delayed), per spec.md §4.6.
func (s *Scheduler) applySendDispatch(n journal.Note) error {
	d := n.Dispatch
	if n.Delay == 0 {
		if s.Programs.IsProgram(d.Message.Destination) {
			s.Queue.PushBack(d)
			return nil
		}
		return s.insertMailbox(d)
	}
	return s.sendDelayedDispatch(d, n.Delay)
}

// insertMailbox locks the mailbox-threshold amount in a cut gas-tree node
// and schedules RemoveFromMailbox at the gas-proportional expiration
// (spec.md §4.6 "Mailbox insertion").
func (s *Scheduler) insertMailbox(d journal.StoredDispatch) error {
	child := mailboxChildId(d.Message.Id)
	if err := s.GasTree.Cut(d.Message.Id, child, s.MailboxThresholdAmount); err != nil {
		return err
	}
	if err := s.GasTree.Lock(child, LockMailbox, s.MailboxThresholdAmount); err != nil {
		return err
	}
	var blocks uint64
	if s.MailboxPerBlockCost > 0 && d.Message.GasLimit != nil {
		blocks = *d.Message.GasLimit / s.MailboxPerBlockCost
	}
	expiration := s.BlockHeight + blocks
	msg := StoredMessage{
		Id: d.Message.Id, Source: d.Message.Source, Destination: d.Message.Destination,
		Payload: d.Message.Payload, Value: d.Message.Value,
	}
	s.Mailbox.Insert(d.Message.Destination, msg, Interval{Start: s.BlockHeight, Finish: expiration})
	return s.Tasks.Add(s.BlockHeight, expiration, taskpool.Task{
		Kind: taskpool.RemoveFromMailbox, Owner: d.Message.Destination, Message: d.Message.Id,
	})
}

// sendDelayedDispatch implements spec.md §4.6's send_delayed_dispatch: it
// stashes d, locks the holding rent for delay blocks under LockDispatchStash,
// and schedules the appropriate firing task.
func (s *Scheduler) sendDelayedDispatch(d journal.StoredDispatch, delay uint32) error {
	expiration := s.BlockHeight + uint64(delay)
	s.Stash.Insert(d, Interval{Start: s.BlockHeight, Finish: expiration})

	rent := s.Schedule.DispatchStashRentPerBlock * uint64(delay)
	if err := s.GasTree.Lock(d.Message.Id, LockDispatchStash, rent); err != nil {
		return err
	}

	child := stashChildId(d.Message.Id)
	var task taskpool.Task
	if s.Programs.IsProgram(d.Message.Destination) {
		if err := s.GasTree.Split(d.Message.Id, child); err != nil {
			return err
		}
		task = taskpool.Task{Kind: taskpool.SendDispatch, Message: d.Message.Id}
	} else {
		if err := s.GasTree.Cut(d.Message.Id, child, s.MailboxThresholdAmount); err != nil {
			return err
		}
		task = taskpool.Task{Kind: taskpool.SendUserMessage, Message: d.Message.Id, ToMailbox: true}
	}
	return s.Tasks.Add(s.BlockHeight, expiration, task)
}

// applyWaitDispatch moves the in-flight dispatch named by n.Message into
// the waitlist, locking the waitlist rent for the requested duration
// (spec.md §4.4 gr_wait family, §4.6).
func (s *Scheduler) applyWaitDispatch(n journal.Note) error {
	d, ok := s.inFlight[n.Message]
	if !ok {
		return fmt.Errorf("scheduler: WaitDispatch(%s): dispatch not in flight", n.Message)
	}
	var finish, locked uint64
	if n.WaitDuration != nil && *n.WaitDuration > 0 {
		finish = s.BlockHeight + uint64(*n.WaitDuration)
		locked = s.Schedule.WaitlistRentPerBlock * uint64(*n.WaitDuration)
		if err := s.GasTree.Lock(n.Message, LockWaitlist, locked); err != nil {
			return err
		}
	}
	s.Waitlist.Insert(n.Program, d, Interval{Start: s.BlockHeight, Finish: finish}, locked)
	if finish > 0 {
		return s.Tasks.Add(s.BlockHeight, finish, taskpool.Task{
			Kind: taskpool.WakeMessage, Program: n.Program, Message: n.Message,
		})
	}
	return nil
}

// applyWake implements spec.md §4.6 "Wake": schedule a WakeMessage task for
// delay > 0, otherwise remove the target from the waitlist immediately and
// push it back onto the queue, unlocking any remaining waitlist rent.
func (s *Scheduler) applyWake(n journal.Note) error {
	if n.WakeDelay > 0 {
		return s.Tasks.Add(s.BlockHeight, s.BlockHeight+uint64(n.WakeDelay), taskpool.Task{
			Kind: taskpool.WakeMessage, Program: n.Program, Message: n.Message,
		})
	}
	return s.wakeNow(n.Program, n.Message)
}

func (s *Scheduler) wakeNow(program common.ActorId, mid common.MessageId) error {
	entry, ok := s.Waitlist.Remove(program, mid)
	if !ok {
		return nil
	}
	if entry.Locked > 0 {
		if err := s.GasTree.Unlock(mid, LockWaitlist, entry.Locked); err != nil {
			return err
		}
	}
	s.Queue.PushBack(entry.Dispatch)
	return nil
}

// fireTask dispatches one due task-pool entry to the notes it produces
// (spec.md §4.6 step 3, §4.8 "Task handlers are pure functions of the
// scheduler's state and produce further journal notes as needed").
func (s *Scheduler) fireTask(t taskpool.Task) ([]journal.Note, error) {
	switch t.Kind {
	case taskpool.WakeMessage:
		if err := s.wakeNow(t.Program, t.Message); err != nil {
			return nil, err
		}
		return nil, nil

	case taskpool.RemoveFromMailbox:
		entry, ok := s.Mailbox.Remove(t.Owner, t.Message)
		if !ok {
			return nil, nil
		}
		child := mailboxChildId(t.Message)
		if _, _, err := s.GasTree.Consume(child); err != nil {
			return nil, err
		}
		_ = entry
		return nil, nil

	case taskpool.RemoveGasReservation:
		if _, err := s.GasTree.SystemUnreserve(t.Message); err != nil {
			if err == gastree.ErrAlreadyConsumed {
				// An explicit gr_unreserve_gas already consumed it first;
				// the scheduled expiry is then a harmless no-op race.
				return nil, nil
			}
			return nil, err
		}
		return []journal.Note{{Kind: journal.UnreserveGas, Program: t.Program, ReservationId: t.Message}}, nil

	case taskpool.SendUserMessage:
		entry, ok := s.Stash.Remove(t.Message)
		if !ok {
			return nil, nil
		}
		if t.ToMailbox {
			return nil, s.insertMailbox(entry.Dispatch)
		}
		return nil, nil

	case taskpool.SendDispatch:
		entry, ok := s.Stash.Remove(t.Message)
		if !ok {
			return nil, nil
		}
		s.Queue.PushBack(entry.Dispatch)
		return nil, nil

	case taskpool.PauseProgram:
		return nil, s.Store.Exit(t.Program, common.Hash{})

	default:
		return nil, fmt.Errorf("scheduler: unknown task kind %d", t.Kind)
	}
}
