package scheduler

import (
	"fmt"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/taskpool"
)

// Apply applies one journal note to scheduler state (spec.md §4.6: "Apply
// each journal note via JournalHandler"; §4.5: "Journal application is
// atomic per note. Failure inside a handler is a consistency bug and
// aborts the block"). A non-nil error here is always fatal to the
// caller's ProcessBlock call.
func (s *Scheduler) Apply(n journal.Note) error {
	switch n.Kind {
	case journal.MessageDispatched:
		// Observational only; nothing to mutate.
		return nil

	case journal.GasBurned:
		if err := s.GasTree.Burn(n.Message, n.GasAmount); err != nil {
			return fmt.Errorf("scheduler: GasBurned(%s): %w", n.Message, err)
		}
		return nil

	case journal.ExitDispatch:
		if err := s.Store.Exit(n.Program, n.Heir); err != nil {
			return fmt.Errorf("scheduler: ExitDispatch(%s): %w", n.Program, err)
		}
		return nil

	case journal.MessageConsumed:
		source := s.inFlight[n.Message].Message.Source
		owedTo, amount, err := s.GasTree.Consume(n.Message)
		if err != nil {
			return fmt.Errorf("scheduler: MessageConsumed(%s): %w", n.Message, err)
		}
		delete(s.inFlight, n.Message)
		// A non-zero owedTo means Consume already credited a parent node
		// in the tree; owedTo == zero means a root was consumed and the
		// leftover left the tree entirely (spec.md §4.7 "consume"), so it
		// must be refunded as balance to whoever originally paid for it.
		if owedTo.Zero() && amount > 0 {
			if err := s.Ledger.Transfer(common.ActorId{}, source, amount); err != nil {
				return fmt.Errorf("scheduler: MessageConsumed(%s): refund: %w", n.Message, err)
			}
		}
		return nil

	case journal.SendDispatch:
		return s.applySendDispatch(n)

	case journal.WaitDispatch:
		return s.applyWaitDispatch(n)

	case journal.WakeMessage:
		return s.applyWake(n)

	case journal.UpdatePage:
		if err := s.Store.ApplyPage(n.Program, uint32(n.Page), n.Data); err != nil {
			return fmt.Errorf("scheduler: UpdatePage(%s): %w", n.Program, err)
		}
		return nil

	case journal.UpdateAllocations:
		if err := s.Store.ApplyAllocations(n.Program, n.Allocations); err != nil {
			return fmt.Errorf("scheduler: UpdateAllocations(%s): %w", n.Program, err)
		}
		return nil

	case journal.SendValue:
		if err := s.Ledger.Transfer(n.From, n.To, n.Value); err != nil {
			return fmt.Errorf("scheduler: SendValue(%s -> %s): %w", n.From, n.To, err)
		}
		return nil

	case journal.StoreNewPrograms:
		for _, np := range n.NewPrograms {
			if err := s.Store.CreateProgram(np.Actor, np.Code); err != nil {
				return fmt.Errorf("scheduler: StoreNewPrograms(%s): %w", np.Actor, err)
			}
		}
		return nil

	case journal.StopProcessing:
		// The queue re-push and processing-disabled flag are handled
		// directly by ProcessBlock's loop; nothing further to apply here.
		return nil

	case journal.ReserveGas:
		if err := s.GasTree.Reserve(n.Message, n.ReservationId, n.GasAmount); err != nil {
			return fmt.Errorf("scheduler: ReserveGas(%s): %w", n.ReservationId, err)
		}
		return s.Tasks.Add(s.BlockHeight, n.FinishBlock, taskpool.Task{
			Kind: taskpool.RemoveGasReservation, Program: n.Program, Message: n.ReservationId,
		})

	case journal.UnreserveGas:
		_, _, err := s.GasTree.Consume(n.ReservationId)
		if err != nil {
			return fmt.Errorf("scheduler: UnreserveGas(%s): %w", n.ReservationId, err)
		}
		return nil

	case journal.UpdateGasReservations:
		// Bulk reservation bookkeeping (finish-block updates) is not
		// applied: neither the gas tree nor the program store changes
		// until the individual reservations are consumed or removed.
		return nil

	case journal.SystemReserveGas:
		if err := s.GasTree.SystemReserve(n.Message, n.ReservationId, n.GasAmount); err != nil {
			return fmt.Errorf("scheduler: SystemReserveGas(%s): %w", n.ReservationId, err)
		}
		return nil

	case journal.SystemUnreserveGas:
		if _, err := s.GasTree.SystemUnreserve(n.ReservationId); err != nil {
			return fmt.Errorf("scheduler: SystemUnreserveGas(%s): %w", n.ReservationId, err)
		}
		return nil

	case journal.SendSignal:
		return s.applySendDispatch(n)

	case journal.ReplyDeposit:
		if err := s.GasTree.Reserve(n.Message, n.Message, n.ReplyDepositAmount); err != nil {
			return fmt.Errorf("scheduler: ReplyDeposit(%s): %w", n.Message, err)
		}
		return nil

	default:
		return fmt.Errorf("scheduler: unknown journal note kind %d", n.Kind)
	}
}
