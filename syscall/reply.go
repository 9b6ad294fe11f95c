package syscall

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// replyHandler implements the symmetric gr_reply* family plus gr_reply_to,
// gr_reply_code, gr_signal_code, gr_signal_from (spec.md §4.4 "Reply").
// A single execution may commit at most one reply; a second attempt traps.
type replyHandler struct{}

func NewReplyHandler() Handler { return &replyHandler{} }

func (h *replyHandler) CanHandle(name string) bool {
	switch name {
	case "gr_reply", "gr_reply_wgas", "gr_reply_push", "gr_reply_commit",
		"gr_reply_commit_wgas", "gr_reply_to", "gr_reply_code",
		"gr_signal_code", "gr_signal_from":
		return true
	}
	return false
}

func (h *replyHandler) guardSingleReply(ctx *Context) error {
	if ctx.replyCommitted {
		return &TrapError{Reason: TrapUnrecoverableExt, Detail: "second reply commit in one execution"}
	}
	return nil
}

// emitReply validates value/length against availability and produces the
// SendDispatch note once the outgoing payload is already a decoded Go
// slice; Reply and ReplyCommit each source that slice differently (guest
// memory vs. an assembled builder) and share this tail.
func (h *replyHandler) emitReply(ctx *Context, payload []byte, value uint64, gasLimit *uint64, available uint64) (common.MessageId, RecoverableError, error) {
	if rec := validateOutgoing(payload, value, available); rec != ErrNone {
		return common.MessageId{}, rec, nil
	}
	mid := xcrypto.GenerateOutgoing(ctx.Current.Id, ctx.Dispatch.Context.OutgoingNonce)
	ctx.Dispatch.Context.OutgoingNonce++
	msg := journal.Message{
		Id: mid, Source: ctx.Program, Destination: ctx.Current.Source,
		Payload: payload, Value: value, GasLimit: gasLimit, Kind: journal.KindReply,
		Details: &journal.ReplyDetails{ReplyTo: ctx.Current.Id},
	}
	ctx.replyCommitted = true
	ctx.Emit(journal.Note{Kind: journal.SendDispatch, Message: ctx.Current.Id, Dispatch: journal.StoredDispatch{Message: msg, Context: journal.NewContextStore()}})
	return mid, ErrNone, nil
}

// Reply executes the one-shot gr_reply[_wgas] syscall, reading the whole
// payload from guest memory in one call.
func (h *replyHandler) Reply(ctx *Context, payloadPtr, payloadLen uint32, value uint64, gasLimit *uint64, available uint64) (common.MessageId, RecoverableError, error) {
	if err := h.guardSingleReply(ctx); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	name := "gr_reply"
	if gasLimit != nil {
		name = "gr_reply_wgas"
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
	return h.emitReply(ctx, payload, value, gasLimit, available)
}

// ReplyPush appends length bytes read from guest memory at ptr to the
// execution's single implicit reply builder (gr_reply_push has no
// explicit handle, unlike gr_send_push).
func (h *replyHandler) ReplyPush(ctx *Context, ptr, length uint32) (RecoverableError, error) {
	if err := ctx.chargeFixed("gr_reply_push", uint64(length)); err != nil {
		return ErrNone, err
	}
	const replyBuilderHandle = ^uint32(0)
	b, ok := ctx.Dispatch.Context.Builders[replyBuilderHandle]
	if !ok {
		b = &journal.OutgoingBuilder{}
		ctx.Dispatch.Context.Builders[replyBuilderHandle] = b
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

// ReplyCommit finalizes the implicit reply builder (gr_reply_commit[_wgas]).
// The builder's bytes were already assembled from guest memory by prior
// ReplyPush calls, so this charges as a fresh gr_reply[_wgas] over the
// assembled length (matching the one-shot Reply's charge) rather than
// reading guest memory again.
func (h *replyHandler) ReplyCommit(ctx *Context, value uint64, gasLimit *uint64, available uint64) (common.MessageId, RecoverableError, error) {
	if err := h.guardSingleReply(ctx); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	const replyBuilderHandle = ^uint32(0)
	b := ctx.Dispatch.Context.Builders[replyBuilderHandle]
	if b == nil {
		b = &journal.OutgoingBuilder{}
	}
	name := "gr_reply"
	if gasLimit != nil {
		name = "gr_reply_wgas"
	}
	if err := ctx.chargeFixed(name, uint64(len(b.Payload))); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	return h.emitReply(ctx, b.Payload, value, gasLimit, available)
}

// ReplyTo returns the MessageId this execution is replying to, or an
// error code if the current dispatch is not a reply (spec.md §4.4).
func (h *replyHandler) ReplyTo(ctx *Context) (common.MessageId, RecoverableError, error) {
	if err := ctx.chargeFixed("gr_reply_to", 0); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	if ctx.Current.Details == nil || ctx.Current.Details.IsSignal {
		return common.MessageId{}, ErrUnsupportedMessageKind, nil
	}
	return ctx.Current.Details.ReplyTo, ErrNone, nil
}

// ReplyCode returns the reply code of the current dispatch, if any.
func (h *replyHandler) ReplyCode(ctx *Context) (uint32, RecoverableError, error) {
	if err := ctx.chargeFixed("gr_reply_code", 0); err != nil {
		return 0, ErrNone, err
	}
	if ctx.Current.Details == nil || ctx.Current.Details.IsSignal {
		return 0, ErrUnsupportedMessageKind, nil
	}
	return ctx.Current.Details.ReplyCode, ErrNone, nil
}

// SignalCode returns the signal code of the current dispatch, if any.
func (h *replyHandler) SignalCode(ctx *Context) (uint32, RecoverableError, error) {
	if err := ctx.chargeFixed("gr_signal_code", 0); err != nil {
		return 0, ErrNone, err
	}
	if ctx.Current.Details == nil || !ctx.Current.Details.IsSignal {
		return 0, ErrUnsupportedMessageKind, nil
	}
	return ctx.Current.Details.SignalCode, ErrNone, nil
}

// SignalFrom returns the MessageId that produced this signal.
func (h *replyHandler) SignalFrom(ctx *Context) (common.MessageId, RecoverableError, error) {
	if err := ctx.chargeFixed("gr_signal_from", 0); err != nil {
		return common.MessageId{}, ErrNone, err
	}
	if ctx.Current.Details == nil || !ctx.Current.Details.IsSignal {
		return common.MessageId{}, ErrUnsupportedMessageKind, nil
	}
	return ctx.Current.Details.ReplyTo, ErrNone, nil
}
