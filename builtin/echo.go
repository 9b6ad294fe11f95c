package builtin

import (
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// EchoId is the builtin id of Echo, grounded on the original's
// SuccessBuiltinActor (pallets/gear-builtin-actor/src/mock.rs): a minimal
// builtin that always replies successfully, used to exercise the
// invocation contract without a real host-implemented service behind it.
var EchoId = Id{'b', 'l', 't', 'n', '/', 'e', 'c', 'h'}

// EchoFixedGas is the gas Echo reports burned on every invocation
// (mirrors the original's hardcoded 1_000_000 GasBurned amount).
const EchoFixedGas = 1_000_000

// Echo is a builtin actor that always succeeds, replying with a fixed
// payload. Useful as a cheap liveness probe and as the reference shape new
// builtin families are grounded on.
type Echo struct{}

func (Echo) CanHandle(id Id) bool { return id == EchoId }

// Handle builds the four-note journal spec.md §4.11 requires of every
// builtin: MessageDispatched first, GasBurned before the reply
// SendDispatch, and MessageConsumed last.
func (Echo) Handle(in Input) ([]journal.Note, error) {
	msg := in.Dispatch.Message
	replyId := xcrypto.GenerateOutgoing(msg.Id, 0)

	return []journal.Note{
		{Kind: journal.MessageDispatched, Message: msg.Id, Program: in.Program},
		{Kind: journal.GasBurned, Message: msg.Id, Program: in.Program, GasAmount: EchoFixedGas},
		{
			Kind:    journal.SendDispatch,
			Message: msg.Id,
			Program: in.Program,
			Dispatch: journal.StoredDispatch{
				Message: journal.Message{
					Id:          replyId,
					Source:      in.Program,
					Destination: msg.Source,
					Payload:     []byte("Success"),
					Kind:        journal.KindReply,
					Details: &journal.ReplyDetails{
						ReplyTo:   msg.Id,
						ReplyCode: 0,
					},
				},
			},
		},
		{Kind: journal.MessageConsumed, Message: msg.Id, Program: in.Program, Outcome: journal.OutcomeSuccess},
	}, nil
}
