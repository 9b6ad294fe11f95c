package syscall

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// messagingHandler implements the gr_send* family (spec.md §4.4
// "Messaging"). Each call validates payload length and value before
// producing a SendDispatch journal note; the destination is not checked.
type messagingHandler struct{}

func NewMessagingHandler() Handler { return &messagingHandler{} }

func (h *messagingHandler) CanHandle(name string) bool {
	switch name {
	case "gr_send", "gr_send_wgas", "gr_send_init", "gr_send_push",
		"gr_send_commit", "gr_send_commit_wgas", "gr_send_input",
		"gr_send_input_wgas", "gr_send_push_input",
		"gr_reservation_send", "gr_reservation_send_commit":
		return true
	}
	return false
}

func validateOutgoing(payload []byte, value uint64, available uint64) RecoverableError {
	if len(payload) > journal.MaxPayloadSize {
		return ErrMaxMessageSizeExceeded
	}
	if value > available {
		return ErrValueTransfer
	}
	return ErrNone
}

// emitSend validates value/length against availability and produces the
// SendDispatch note once the outgoing payload is already a decoded Go
// slice; Send, SendCommit, and SendInput each source that slice
// differently (guest memory, an assembled builder, the incoming message's
// own payload) and share this tail.
func (h *messagingHandler) emitSend(ctx *Context, dest common.ActorId, payload []byte, value uint64, gasLimit *uint64, available uint64) (common.MessageId, RecoverableError, error) {
	if rec := validateOutgoing(payload, value, available); rec != ErrNone {
		return common.MessageId{}, rec, nil
	}
	mid := xcrypto.GenerateOutgoing(ctx.Current.Id, ctx.Dispatch.Context.OutgoingNonce)
	ctx.Dispatch.Context.OutgoingNonce++
	msg := journal.Message{
		Id: mid, Source: ctx.Program, Destination: dest,
		Payload: payload, Value: value, GasLimit: gasLimit, Kind: journal.KindHandle,
	}
	ctx.Emit(journal.Note{Kind: journal.SendDispatch, Message: ctx.Current.Id, Dispatch: journal.StoredDispatch{Message: msg, Context: journal.NewContextStore()}})
	return mid, ErrNone, nil
}

// Send executes the one-shot gr_send[_wgas] syscalls: the whole payload is
// read from guest memory in one call, no builder handle involved.
func (h *messagingHandler) Send(ctx *Context, dest common.ActorId, payloadPtr, payloadLen uint32, value uint64, gasLimit *uint64, available uint64) (common.MessageId, RecoverableError, error) {
	name := "gr_send"
	if gasLimit != nil {
		name = "gr_send_wgas"
	}
	if err := ctx.chargeFixed(name, uint64(payloadLen)); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	if payloadLen > journal.MaxPayloadSize {
		return common.MessageId{}, ErrMaxMessageSizeExceeded, nil
	}
	payload, err := ctx.readGuest(payloadPtr, payloadLen)
	if err != nil {
		return common.MessageId{}, ErrMemoryAccess, nil
	}
	return h.emitSend(ctx, dest, payload, value, gasLimit, available)
}

// SendInit begins a handle-based outgoing message (gr_send_init), opening
// a builder entry callers fill with gr_send_push and finalize with
// gr_send_commit[_wgas] (spec.md §4.4: "a per-execution map of open builders").
func (h *messagingHandler) SendInit(ctx *Context) (handle uint32, recErr RecoverableError, err error) {
	if err := ctx.chargeFixed("gr_send_init", 0); err != nil {
		return 0, ErrNone, err
	}
	if len(ctx.Dispatch.Context.Builders) >= 1<<16 {
		return 0, ErrTooManyOutgoingBuilders, nil
	}
	handle = uint32(len(ctx.Dispatch.Context.Builders))
	for {
		if _, exists := ctx.Dispatch.Context.Builders[handle]; !exists {
			break
		}
		handle++
	}
	ctx.Dispatch.Context.Builders[handle] = &journal.OutgoingBuilder{}
	return handle, ErrNone, nil
}

// SendPush appends length bytes read from guest memory at ptr to an open
// builder.
func (h *messagingHandler) SendPush(ctx *Context, handle uint32, ptr, length uint32) (RecoverableError, error) {
	if err := ctx.chargeFixed("gr_send_push", uint64(length)); err != nil {
		return ErrNone, err
	}
	b, ok := ctx.Dispatch.Context.Builders[handle]
	if !ok {
		return ErrNoSuchBuilder, nil
	}
	if len(b.Payload)+int(length) > journal.MaxPayloadSize {
		return ErrMaxMessageSizeExceeded, nil
	}
	data, err := ctx.readGuest(ptr, length)
	if err != nil {
		return ErrMemoryAccess, nil
	}
	b.Payload = append(b.Payload, data...)
	return ErrNone, nil
}

// SendCommit finalizes an open builder into an outgoing dispatch,
// consuming the handle (spec.md §4.4: "a commit consumes one").
func (h *messagingHandler) SendCommit(ctx *Context, handle uint32, dest common.ActorId, value uint64, gasLimit *uint64, available uint64) (common.MessageId, RecoverableError, error) {
	name := "gr_send_commit"
	if gasLimit != nil {
		name = "gr_send_commit_wgas"
	}
	if err := ctx.chargeFixed(name, 0); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	b, ok := ctx.Dispatch.Context.Builders[handle]
	if !ok {
		return common.MessageId{}, ErrNoSuchBuilder, nil
	}
	delete(ctx.Dispatch.Context.Builders, handle)
	return h.emitSend(ctx, dest, b.Payload, value, gasLimit, available)
}

// SendInput sends the incoming message's own payload slice [at, at+len) as
// the outgoing payload (gr_send_input family), avoiding a guest-side copy:
// the bytes already live in this Context, not in guest linear memory, so
// there is no pointer for the memory manager to mediate.
func (h *messagingHandler) SendInput(ctx *Context, dest common.ActorId, at, length uint32, value uint64, gasLimit *uint64, available uint64) (common.MessageId, RecoverableError, error) {
	if uint64(at)+uint64(length) > uint64(len(ctx.Current.Payload)) {
		return common.MessageId{}, ErrMemoryAccess, nil
	}
	name := "gr_send"
	if gasLimit != nil {
		name = "gr_send_wgas"
	}
	if err := ctx.chargeFixed(name, uint64(length)); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	return h.emitSend(ctx, dest, ctx.Current.Payload[at:at+length], value, gasLimit, available)
}

// ReservationSend sends using gas drawn from an existing reservation
// instead of the message's own gas counter (spec.md §4.4, S4). The payload
// is read from guest memory at ptr/length, same as Send.
func (h *messagingHandler) ReservationSend(ctx *Context, rid common.ReservationId, dest common.ActorId, ptr, length uint32, value uint64, consumeReservation func(common.ReservationId) (uint64, error)) (common.MessageId, RecoverableError, error) {
	if err := ctx.chargeFixed("gr_reservation_send", uint64(length)); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	payload, err := ctx.readGuest(ptr, length)
	if err != nil {
		return common.MessageId{}, ErrMemoryAccess, nil
	}
	refund, err := consumeReservation(rid)
	if err != nil {
		return common.MessageId{}, ErrReservationNotFound, nil
	}
	mid := xcrypto.GenerateOutgoing(ctx.Current.Id, ctx.Dispatch.Context.OutgoingNonce)
	ctx.Dispatch.Context.OutgoingNonce++
	gasLimit := new(uint64)
	*gasLimit = refund
	msg := journal.Message{
		Id: mid, Source: ctx.Program, Destination: dest,
		Payload: payload, Value: value, GasLimit: gasLimit, Kind: journal.KindHandle,
	}
	ctx.Emit(journal.Note{Kind: journal.UnreserveGas, ReservationId: rid, GasAmount: refund})
	ctx.Emit(journal.Note{Kind: journal.SendDispatch, Message: ctx.Current.Id, Dispatch: journal.StoredDispatch{Message: msg, Context: journal.NewContextStore()}})
	return mid, ErrNone, nil
}
