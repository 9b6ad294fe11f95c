package syscall

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/costs"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// reservationHandler implements gr_reserve_gas / gr_unreserve_gas
// (spec.md §4.4 "Reservations").
type reservationHandler struct{}

func NewReservationHandler() Handler { return &reservationHandler{} }

func (h *reservationHandler) CanHandle(name string) bool {
	switch name {
	case "gr_reserve_gas", "gr_unreserve_gas":
		return true
	}
	return false
}

// ReserveGas checks that amount covers the holding rent for the requested
// duration and emits ReserveGas (spec.md §4.4); the Reserved gas-tree node
// is created when the scheduler applies that note. The rent itself is not
// charged.
func (h *reservationHandler) ReserveGas(ctx *Context, amount uint64, blocks uint64) (common.ReservationId, RecoverableError, error) {
	if err := ctx.chargeFixed("gr_reserve_gas", 0); err != nil {
		return common.ReservationId{}, ErrNone, err
	}
	rent := costs.Charge(0, ctx.Schedule.ReservationRentPerBlock, blocks)
	if amount < rent {
		return common.ReservationId{}, ErrLimitExceeded, nil
	}
	rid := xcrypto.GenerateOutgoing(ctx.Current.Id, ctx.Dispatch.Context.OutgoingNonce)
	ctx.Dispatch.Context.OutgoingNonce++
	ctx.Emit(journal.Note{
		Kind: journal.ReserveGas, Program: ctx.Program, Message: ctx.Current.Id, ReservationId: rid,
		GasAmount: amount, FinishBlock: ctx.BlockHeight + blocks,
	})
	return rid, ErrNone, nil
}

// UnreserveGas emits UnreserveGas; when the scheduler applies it the
// reservation node is consumed and its whole remaining value goes back to
// its parent node, with no rent deducted.
func (h *reservationHandler) UnreserveGas(ctx *Context, rid common.ReservationId) (RecoverableError, error) {
	if err := ctx.chargeFixed("gr_unreserve_gas", 0); err != nil {
		return ErrNone, err
	}
	ctx.Emit(journal.Note{Kind: journal.UnreserveGas, Program: ctx.Program, ReservationId: rid})
	return ErrNone, nil
}
