package syscall

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/costs"
	"github.com/gear-tech/gear-sub008/journal"
)

// controlHandler implements gr_wait/gr_wait_for/gr_wait_up_to/gr_wake/
// gr_exit/gr_leave (spec.md §4.4 "Control").
type controlHandler struct{}

func NewControlHandler() Handler { return &controlHandler{} }

func (h *controlHandler) CanHandle(name string) bool {
	switch name {
	case "gr_wait", "gr_wait_for", "gr_wait_up_to", "gr_wake", "gr_exit", "gr_leave":
		return true
	}
	return false
}

// Wait produces an indefinite WaitDispatch note.
func (h *controlHandler) Wait(ctx *Context) error {
	if err := ctx.chargeFixed("gr_wait", 0); err != nil {
		return err
	}
	ctx.Emit(journal.Note{Kind: journal.WaitDispatch, Message: ctx.Current.Id, WaitedType: journal.WaitIndefinite})
	return nil
}

// WaitFor holds a dispatch for exactly n blocks; fails execution if the
// reservation cannot cover n blocks of waitlist rent (spec.md §4.4, §5).
func (h *controlHandler) WaitFor(ctx *Context, n uint32, reservedGas uint64) (RecoverableError, error) {
	if err := ctx.chargeFixed("gr_wait_for", 0); err != nil {
		return ErrNone, err
	}
	rent := costs.Charge(0, ctx.Schedule.WaitlistRentPerBlock, uint64(n))
	if reservedGas < rent {
		return ErrNone, &TrapError{Reason: TrapUnrecoverableExt, Detail: "gr_wait_for: reserved gas does not cover the waitlist rent"}
	}
	d := n
	ctx.Emit(journal.Note{Kind: journal.WaitDispatch, Message: ctx.Current.Id, WaitDuration: &d, WaitedType: journal.WaitFor})
	return ErrNone, nil
}

// WaitUpTo stores the maximum affordable duration up to n blocks, rather
// than failing when full coverage isn't affordable (spec.md §4.4).
func (h *controlHandler) WaitUpTo(ctx *Context, n uint32, reservedGas uint64) error {
	if err := ctx.chargeFixed("gr_wait_up_to", 0); err != nil {
		return err
	}
	affordable := n
	if ctx.Schedule.WaitlistRentPerBlock > 0 {
		maxBlocks := reservedGas / ctx.Schedule.WaitlistRentPerBlock
		if maxBlocks < uint64(n) {
			affordable = uint32(maxBlocks)
		}
	}
	ctx.Emit(journal.Note{Kind: journal.WaitDispatch, Message: ctx.Current.Id, WaitDuration: &affordable, WaitedType: journal.WaitUpTo})
	return nil
}

// Wake requests that mid be woken after delay blocks (0 = immediately).
func (h *controlHandler) Wake(ctx *Context, mid common.MessageId, delay uint32) error {
	if err := ctx.chargeFixed("gr_wake", 0); err != nil {
		return err
	}
	ctx.Emit(journal.Note{Kind: journal.WakeMessage, Program: ctx.Program, Message: mid, WakeDelay: delay})
	return nil
}

// Exit transitions the program to Exited(heir); remaining value flows to
// heir, or is burned if heir is the zero actor (spec.md §3 invariant).
func (h *controlHandler) Exit(ctx *Context, heir common.ActorId) error {
	if err := ctx.chargeFixed("gr_exit", 0); err != nil {
		return err
	}
	ctx.Emit(journal.Note{Kind: journal.ExitDispatch, Program: ctx.Program, Heir: heir})
	return nil
}

// Leave aborts the current execution without a trap, equivalent to a
// successful return with no further side effects queued.
func (h *controlHandler) Leave(ctx *Context) error {
	return ctx.chargeFixed("gr_leave", 0)
}
