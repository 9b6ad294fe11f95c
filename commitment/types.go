// Package commitment implements the commitment pipeline (spec.md §4.9,
// component C9): the producer/coordinator/participant state machine that
// turns locally computed blocks into a BatchCommitment, collects
// threshold-quorum contract-bound signatures, and hands the result to a
// settlement-layer submitter.
//
// The aggregation and signature-collection shapes are grounded on the
// teacher's BFT vote pool (consensus/bft/vote_pool.go): a mutex-guarded map
// keyed by signer address, idempotent insertion, and a required-weight
// threshold check — except here the "weight" is a flat one-signer-one-vote
// count and "signer" is an ECDSA-recovered settlement-layer address rather
// than a staked validator weight.
package commitment

import (
	"github.com/holiman/uint256"

	"github.com/gear-tech/gear-sub008/common"
)

// CodeCommitment attests that a code id was instrumented and found
// valid/invalid at the given local timestamp (spec.md §4.9 "Participant").
type CodeCommitment struct {
	Id        common.CodeId
	Timestamp uint64
	Valid     bool
}

// StateTransition is one program's observable effect of a computed block:
// its new state root plus the outgoing messages and value movements a
// settlement-layer contract must act on. Field set is intentionally
// minimal — the instruction-level provenance of a transition is internal
// to the scheduler/journal and never crosses the commitment boundary.
//
// Value fields are *uint256.Int rather than a native int type: they carry
// settlement-layer token amounts (the same value domain as an EVM
// contract's balance/transfer arguments), which the teacher's own
// core/vm/gas.go treats as 256-bit throughout rather than assuming they
// fit a machine word.
type StateTransition struct {
	Actor          common.ActorId
	NewStateHash   common.Hash
	Exited         bool
	InheritorActor common.ActorId
	ValueToReceive *uint256.Int
	ValueClaims    []ValueClaim
	Messages       []OutgoingMessage
}

// ValueClaim is one value transfer a StateTransition settles on behalf of
// its program (e.g. a mailboxed message's value being claimed back).
type ValueClaim struct {
	MessageId   common.MessageId
	Destination common.ActorId
	Value       *uint256.Int
}

// OutgoingMessage is one user-destined message a StateTransition emits,
// ready for settlement-layer delivery.
type OutgoingMessage struct {
	Id           common.MessageId
	Destination  common.ActorId
	Payload      []byte
	Value        *uint256.Int
	ReplyDetails *OutgoingReplyDetails
}

// OutgoingReplyDetails mirrors journal.ReplyDetails for the subset that
// crosses into a commitment.
type OutgoingReplyDetails struct {
	ReplyTo   common.MessageId
	ReplyCode uint32
}

// GearBlock is one computed block folded into a ChainCommitment.
type GearBlock struct {
	Hash                  common.Hash
	Timestamp             uint64
	PreviousNotEmptyBlock common.Hash
	PredecessorBlock      common.Hash
	Transitions           []StateTransition
}

// ChainCommitment squashes one or more consecutive GearBlocks into a single
// settlement-layer call (spec.md §4.9 "Batch commitment").
type ChainCommitment struct {
	Transitions []StateTransition
	GearBlocks  []GearBlock
}

// ValidatorsCommitment anchors a change to the active validator set;
// opaque beyond its digest contribution (non-goal: validator-set rotation
// governance itself).
type ValidatorsCommitment struct {
	ValidatorsSetHash common.Hash
	EraIndex          uint64
}

// RewardsCommitment anchors one era's computed reward distribution.
type RewardsCommitment struct {
	RewardsRootHash common.Hash
	EraIndex        uint64
}

// BatchCommitment is the unit signed and submitted to the settlement layer
// (spec.md §3, §4.9, §6 wire format).
type BatchCommitment struct {
	BlockHash            common.Hash
	Timestamp            uint64
	PreviousBatch        common.Hash
	ChainCommitment      *ChainCommitment
	CodeCommitments      []CodeCommitment
	ValidatorsCommitment *ValidatorsCommitment
	RewardsCommitment    *RewardsCommitment
}

// ValidationRequest is the producer's broadcast asking participants to
// independently verify a batch before signing (spec.md §4.9 "Producer").
type ValidationRequest struct {
	Digest common.Hash
	Blocks []common.Hash
	Codes  []common.CodeId
}

// ValidationReply is a participant's signed acknowledgement of a
// ValidationRequest (spec.md §4.9 "Participant").
type ValidationReply struct {
	Digest    common.Hash
	Signature []byte
}
