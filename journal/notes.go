// Package journal defines the typed sum-type of post-execution effects
// (spec.md §4.5, §9, component C11): the only permitted channel through
// which the execution driver (C5) and builtin actors (C12) communicate
// state changes to the scheduler (C6). Per the "Journal as a sum type"
// design note, a Note is a tagged-variant value, not a callback — this
// keeps the executor pure and the scheduler authoritative.
package journal

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/lazypage"
)

// Kind tags a journal Note's variant (spec.md §4.5).
type Kind uint8

const (
	MessageDispatched Kind = iota
	GasBurned
	ExitDispatch
	MessageConsumed
	SendDispatch
	WaitDispatch
	WakeMessage
	UpdatePage
	UpdateAllocations
	SendValue
	StoreNewPrograms
	StopProcessing
	ReserveGas
	UnreserveGas
	UpdateGasReservations
	SystemReserveGas
	SystemUnreserveGas
	SendSignal
	ReplyDeposit
)

// WaitedType classifies why a dispatch is waiting (spec.md §4.4 gr_wait family).
type WaitedType uint8

const (
	WaitIndefinite WaitedType = iota
	WaitFor
	WaitUpTo
)

// DispatchOutcome classifies the termination reason of one execution
// (spec.md §4.5 step 5, §7).
type DispatchOutcome uint8

const (
	OutcomeSuccess DispatchOutcome = iota
	OutcomeWait
	OutcomeExit
	OutcomeTrap
	OutcomeGasAllowanceExceeded
)

// Note is one journal entry. Only the fields relevant to Kind are
// populated; this mirrors a tagged union without requiring a type switch
// over interface values for the common case of storage/application code
// that only cares about a handful of kinds.
type Note struct {
	Kind Kind

	// MessageDispatched / MessageConsumed / GasBurned / ExitDispatch
	Message common.MessageId
	Program common.ActorId
	Outcome DispatchOutcome
	GasAmount uint64

	// ExitDispatch
	Heir common.ActorId

	// SendDispatch / SendSignal
	Dispatch StoredDispatch
	Delay    uint32 // blocks until the dispatch is actually sent (0 = now)

	// WaitDispatch
	WaitDuration *uint32 // nil = indefinite
	WaitedType   WaitedType

	// WakeMessage
	WakeDelay uint32

	// UpdatePage
	Page lazypage.WasmPage
	Data []byte

	// UpdateAllocations
	Allocations []uint32 // allocated WasmPage numbers after execution

	// SendValue
	From  common.ActorId
	To    common.ActorId
	Value uint64

	// StoreNewPrograms
	NewPrograms []NewProgram

	// ReserveGas / UnreserveGas / SystemReserveGas / SystemUnreserveGas
	ReservationId common.ReservationId
	FinishBlock   uint64

	// UpdateGasReservations
	Reservations map[common.ReservationId]uint64

	// ReplyDeposit
	ReplyDepositAmount uint64
}

// NewProgram is one program creation intent carried by StoreNewPrograms.
type NewProgram struct {
	Actor common.ActorId
	Code  common.CodeId
}

// StoredDispatch is a message bound to its per-actor context store
// (spec.md §3 "Dispatch"), the unit moved between queue/mailbox/waitlist/
// stash. Defined here (rather than in scheduler) so both the execution
// driver and the scheduler can share one type without an import cycle.
type StoredDispatch struct {
	Message Message
	Context ContextStore
}

// MessageKind is a dispatch's entry point (spec.md §3).
type MessageKind uint8

const (
	KindInit MessageKind = iota
	KindHandle
	KindReply
	KindSignal
)

// ReplyDetails carries either a reply target+code or a signal code
// (spec.md §3 "Message" field "details").
type ReplyDetails struct {
	IsSignal  bool
	ReplyTo   common.MessageId
	ReplyCode uint32
	SignalCode uint32
}

// Message is the wire/ledger representation of spec.md §3 "Message".
type Message struct {
	Id          common.MessageId
	Source      common.ActorId
	Destination common.ActorId
	Payload     []byte // <= 8 MiB, enforced by callers constructing a Message
	Value       uint64
	GasLimit    *uint64
	Details     *ReplyDetails
	Kind        MessageKind
}

// MaxPayloadSize is the spec.md §3 bound on Message.Payload.
const MaxPayloadSize = 8 * 1024 * 1024

// ContextStore is the per-actor accumulator carried across waits
// (spec.md §3 "Dispatch"): outgoing message builders, reservation nonces,
// and anything else an execution needs to resume after a wait.
type ContextStore struct {
	OutgoingNonce   uint32
	ReplyAlreadySent bool
	// Builders holds in-progress gr_send_init/push/commit handles, keyed by
	// an opaque handle id assigned at gr_send_init time.
	Builders map[uint32]*OutgoingBuilder
}

// OutgoingBuilder accumulates a handle-based send before gr_*_commit
// (spec.md §4.4 "Messaging": "a per-execution map of open builders").
type OutgoingBuilder struct {
	Destination common.ActorId
	Payload     []byte
	GasLimit    *uint64
	Value       uint64
}

// NewContextStore returns an empty, ready-to-use ContextStore.
func NewContextStore() ContextStore {
	return ContextStore{Builders: make(map[uint32]*OutgoingBuilder)}
}
