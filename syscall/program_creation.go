package syscall

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// creationHandler implements gr_create_program[_wgas] (spec.md §4.4
// "Program creation"): emits a StoreNewPrograms note plus a child
// SendDispatch with kind Init.
type creationHandler struct{}

func NewCreationHandler() Handler { return &creationHandler{} }

func (h *creationHandler) CanHandle(name string) bool {
	switch name {
	case "gr_create_program", "gr_create_program_wgas":
		return true
	}
	return false
}

// CreateProgram reads salt and the init payload from guest memory
// (saltPtr/saltLen, payloadPtr/payloadLen) through the memory access
// manager before deriving the child actor id.
func (h *creationHandler) CreateProgram(ctx *Context, code common.CodeId, saltPtr, saltLen, payloadPtr, payloadLen uint32, value uint64, gasLimit *uint64, available uint64) (common.ActorId, common.MessageId, RecoverableError, error) {
	name := "gr_create_program"
	if gasLimit != nil {
		name = "gr_create_program_wgas"
	}
	if err := ctx.chargeFixed(name, uint64(payloadLen)); err != nil {
		return common.ActorId{}, common.MessageId{}, ErrNone, err
	}
	if payloadLen > journal.MaxPayloadSize {
		return common.ActorId{}, common.MessageId{}, ErrMaxMessageSizeExceeded, nil
	}
	salt, err := ctx.readGuest(saltPtr, saltLen)
	if err != nil {
		return common.ActorId{}, common.MessageId{}, ErrMemoryAccess, nil
	}
	initPayload, err := ctx.readGuest(payloadPtr, payloadLen)
	if err != nil {
		return common.ActorId{}, common.MessageId{}, ErrMemoryAccess, nil
	}
	if rec := validateOutgoing(initPayload, value, available); rec != ErrNone {
		return common.ActorId{}, common.MessageId{}, rec, nil
	}
	actor := xcrypto.DeriveActorId(ctx.Program, code, salt)
	mid := xcrypto.GenerateOutgoing(ctx.Current.Id, ctx.Dispatch.Context.OutgoingNonce)
	ctx.Dispatch.Context.OutgoingNonce++

	ctx.Emit(journal.Note{
		Kind:        journal.StoreNewPrograms,
		Message:     ctx.Current.Id,
		NewPrograms: []journal.NewProgram{{Actor: actor, Code: code}},
	})
	msg := journal.Message{
		Id: mid, Source: ctx.Program, Destination: actor,
		Payload: initPayload, Value: value, GasLimit: gasLimit, Kind: journal.KindInit,
	}
	ctx.Emit(journal.Note{Kind: journal.SendDispatch, Message: ctx.Current.Id, Dispatch: journal.StoredDispatch{Message: msg, Context: journal.NewContextStore()}})
	return actor, mid, ErrNone, nil
}
