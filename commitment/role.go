package commitment

import (
	"errors"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/log"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

var logger = log.Root().New("module", "commitment")

// Role names the validator's state for the current settlement slot
// (spec.md §4.9: "Three roles, explicit state machine per validator per
// block").
type Role uint8

const (
	// RoleInitial is "waiting for the producer selection for the next
	// settlement block".
	RoleInitial Role = iota
	// RoleProducer builds and broadcasts the batch commitment.
	RoleProducer
	// RoleCoordinator is the producer's follow-on role: collecting replies.
	RoleCoordinator
	// RoleParticipant validates a request from the current producer.
	RoleParticipant
)

var (
	ErrWrongRole     = errors.New("commitment: operation not valid for the current role")
	ErrNoActiveBatch = errors.New("commitment: no batch commitment in flight")
)

// Machine drives one validator's per-slot commitment role transitions, the
// way Reactor glues vote ingestion to QC assembly transport-agnostically
// (consensus/bft/reactor.go) — except a commitment slot has three roles
// instead of one flat vote pool, so the transitions themselves are
// explicit methods rather than a single HandleIncomingVote entry point.
type Machine struct {
	self     common.Address
	role     Role
	producer common.Address

	pending *MultisignedBatchCommitment // set only in RoleCoordinator
}

// NewMachine returns a Machine in RoleInitial for the given validator
// identity.
func NewMachine(self common.Address) *Machine {
	return &Machine{self: self, role: RoleInitial}
}

// Role reports the validator's current role.
func (m *Machine) Role() Role { return m.role }

// BeginSlot assigns the slot's producer and moves this validator into
// RoleProducer or RoleParticipant accordingly (spec.md §4.9 "Initial —
// waiting for the producer selection for the next settlement block").
func (m *Machine) BeginSlot(producer common.Address) {
	m.producer = producer
	m.pending = nil
	if producer == m.self {
		m.role = RoleProducer
		logger.Debug("commitment slot began", "role", "producer")
		return
	}
	m.role = RoleParticipant
	logger.Debug("commitment slot began", "role", "participant", "producer", producer)
}

// Produce builds the validation request for a batch this validator is
// producing and moves into RoleCoordinator to await replies (spec.md §4.9
// "Producer ... signs it and broadcasts a BatchCommitmentValidationRequest").
func (m *Machine) Produce(batch BatchCommitment, blocks []common.Hash, codes []common.CodeId, routerAddress common.Address, threshold int, signer *xcrypto.PrivateKey) (ValidationRequest, error) {
	if m.role != RoleProducer {
		return ValidationRequest{}, ErrWrongRole
	}
	digest := batch.Digest()
	multisig, err := NewMultisignedBatchCommitment(batch, routerAddress, threshold, signer)
	if err != nil {
		return ValidationRequest{}, err
	}
	m.pending = multisig
	m.role = RoleCoordinator
	logger.Info("broadcasting batch commitment validation request", "digest", digest)
	return ValidationRequest{Digest: digest, Blocks: blocks, Codes: codes}, nil
}

// AcceptReply admits one participant's ValidationReply while in
// RoleCoordinator (spec.md §4.9 "Coordinator ... collects
// BatchCommitmentValidationReply messages"). Returns whether the quorum
// threshold has now been reached.
func (m *Machine) AcceptReply(reply ValidationReply, checkOrigin CheckOrigin) (thresholdReached bool, err error) {
	if m.role != RoleCoordinator || m.pending == nil {
		return false, ErrWrongRole
	}
	if err := m.pending.AcceptValidationReply(reply, checkOrigin); err != nil {
		logger.Debug("rejected batch commitment validation reply", "err", err)
		return false, err
	}
	return m.pending.ThresholdReached(), nil
}

// Submit returns the accumulated batch and signatures for a settlement-
// layer commit_batch call, resetting the machine to RoleInitial (spec.md
// §4.9 "Threshold submission").
func (m *Machine) Submit() (BatchCommitment, []Signature, error) {
	if m.role != RoleCoordinator || m.pending == nil {
		return BatchCommitment{}, nil, ErrNoActiveBatch
	}
	batch, sigs := m.pending.IntoParts()
	m.role = RoleInitial
	m.pending = nil
	return batch, sigs, nil
}

// RejectRequest logs and drops a validation request that failed local
// checks, returning the validator to RoleInitial without producing a reply
// (spec.md §4.9 "Any mismatch causes a silent rejection"; every rejection
// is logged and dropped, the state machine never aborts the node).
func (m *Machine) RejectRequest(reason error) {
	logger.Debug("reject validation request", "err", reason)
	m.role = RoleInitial
}

// AcceptRequest records that this participant replied successfully and
// returns to RoleInitial awaiting the next slot (spec.md §4.9
// "Participant ... On success, reply with a contract-bound signature").
func (m *Machine) AcceptRequest() {
	m.role = RoleInitial
}
