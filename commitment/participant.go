package commitment

import (
	"errors"
	"fmt"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// Participant validation errors (spec.md §4.9 "Participant": "Any mismatch
// causes a silent rejection"). Named distinctly per cause, mirroring
// original_source's ParticipantError enum, so callers can log why a
// request was rejected without aborting the state machine.
var (
	ErrCodeTimestampMismatch     = errors.New("commitment: code timestamp mismatch")
	ErrCodeValidationMismatch    = errors.New("commitment: code validation result mismatch")
	ErrCodeNotValidatedLocally   = errors.New("commitment: code not validated locally")
	ErrBlockNotComputedLocally   = errors.New("commitment: block not computed locally")
	ErrBlockTimestampMismatch    = errors.New("commitment: block timestamp mismatch")
	ErrTransitionsDigestMismatch = errors.New("commitment: transitions digest mismatch")
	ErrPreviousBlockMismatch     = errors.New("commitment: previous-not-empty-block mismatch")
	ErrNotPredecessor            = errors.New("commitment: block is not a predecessor within the allowed distance")
)

// ChainLookup resolves ancestry for the predecessor-distance check
// (spec.md §4.9 "that predecessor_block is a chain predecessor within a
// configurable distance").
type ChainLookup interface {
	BlockHeight(hash common.Hash) (uint64, bool)
	BlockParent(hash common.Hash) (common.Hash, bool)
}

// ValidateCodeCommitment rejects a requested CodeCommitment if it disagrees
// with this node's local view (spec.md §4.9 "for each code, require
// local_timestamp == requested_timestamp and local_valid == requested_valid").
func ValidateCodeCommitment(store CodeStatusStore, req CodeCommitment) error {
	localTs, ok := store.CodeTimestamp(req.Id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCodeNotValidatedLocally, req.Id)
	}
	if localTs != req.Timestamp {
		return fmt.Errorf("%w: local %d, requested %d", ErrCodeTimestampMismatch, localTs, req.Timestamp)
	}
	localValid, ok := store.CodeValid(req.Id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCodeNotValidatedLocally, req.Id)
	}
	if localValid != req.Valid {
		return fmt.Errorf("%w: local %v, requested %v", ErrCodeValidationMismatch, localValid, req.Valid)
	}
	return nil
}

// BlockCommitmentRequest is one block's slice of a ValidationRequest
// (spec.md §4.9 "Participant", block-level checks), carried alongside the
// request's digest/blocks/codes summary.
type BlockCommitmentRequest struct {
	BlockHash             common.Hash
	BlockTimestamp        uint64
	PreviousNotEmptyBlock common.Hash
	PredecessorBlock      common.Hash
	TransitionsDigest     common.Hash
	MaxPredecessorDistance uint64 // 0 = unbounded
}

// ValidateBlockCommitment rejects a requested block slice if it disagrees
// with this node's local view of that block (spec.md §4.9 "for each block,
// require block_computed, matching block_timestamp, matching transitions
// digest, matching previous-non-empty-block, and that predecessor_block is
// a chain predecessor within a configurable distance").
func ValidateBlockCommitment(store BlockMetaStore, chain ChainLookup, req BlockCommitmentRequest) error {
	if !store.BlockComputed(req.BlockHash) {
		return fmt.Errorf("%w: %s", ErrBlockNotComputedLocally, req.BlockHash)
	}
	_, timestamp, _, ok := store.BlockHeader(req.BlockHash)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBlockNotComputedLocally, req.BlockHash)
	}
	if timestamp != req.BlockTimestamp {
		return fmt.Errorf("%w: local %d, requested %d", ErrBlockTimestampMismatch, timestamp, req.BlockTimestamp)
	}

	transitions, ok := store.BlockOutcome(req.BlockHash)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBlockNotComputedLocally, req.BlockHash)
	}
	localDigest := transitionsDigest(transitions)
	if localDigest != req.TransitionsDigest {
		return fmt.Errorf("%w: local %s, requested %s", ErrTransitionsDigestMismatch, localDigest, req.TransitionsDigest)
	}

	localPrev, ok := store.PreviousNotEmptyBlock(req.BlockHash)
	if !ok || localPrev != req.PreviousNotEmptyBlock {
		return fmt.Errorf("%w: local %s, requested %s", ErrPreviousBlockMismatch, localPrev, req.PreviousNotEmptyBlock)
	}

	isPred, err := isPredecessor(chain, req.BlockHash, req.PredecessorBlock, req.MaxPredecessorDistance)
	if err != nil {
		return err
	}
	if !isPred {
		return fmt.Errorf("%w: %s is not a predecessor of %s", ErrNotPredecessor, req.PredecessorBlock, req.BlockHash)
	}
	return nil
}

// transitionsDigest folds a block's transitions into the single digest a
// BlockCommitmentRequest compares against (spec.md §4.9's
// "local_outcome_digest"); concatenation of each transition's encoding.
func transitionsDigest(transitions []StateTransition) common.Hash {
	var buf []byte
	for _, tr := range transitions {
		buf = tr.encode(buf)
	}
	return xcrypto.Keccak256Hash(buf)
}

// isPredecessor walks block's ancestry back toward pred, up to maxDistance
// blocks (0 = unbounded), grounded on
// original_source/.../participant.rs's verify_is_predecessor.
func isPredecessor(chain ChainLookup, block, pred common.Hash, maxDistance uint64) (bool, error) {
	if block == pred {
		return true, nil
	}
	blockHeight, ok := chain.BlockHeight(block)
	if !ok {
		return false, fmt.Errorf("commitment: unknown block %s", block)
	}
	predHeight, ok := chain.BlockHeight(pred)
	if !ok {
		return false, fmt.Errorf("commitment: unknown predecessor candidate %s", pred)
	}
	if predHeight > blockHeight {
		return false, nil
	}
	distance := blockHeight - predHeight
	if maxDistance > 0 && distance > maxDistance {
		return false, fmt.Errorf("%w: distance %d exceeds %d", ErrNotPredecessor, distance, maxDistance)
	}

	cur := block
	for i := uint64(0); i <= distance; i++ {
		if cur == pred {
			return true, nil
		}
		parent, ok := chain.BlockParent(cur)
		if !ok {
			return false, fmt.Errorf("commitment: unknown block %s", cur)
		}
		cur = parent
	}
	return false, nil
}

// ProcessValidationRequest runs every code and block check a
// ValidationRequest names and, on success, signs the batch digest
// (spec.md §4.9 "Participant"). A non-nil error means "silently reject";
// callers must not propagate it as a state-machine fault.
func ProcessValidationRequest(
	codes CodeStatusStore,
	blocks BlockMetaStore,
	chain ChainLookup,
	req ValidationRequest,
	codeCommitments []CodeCommitment,
	blockRequests []BlockCommitmentRequest,
	routerAddress common.Address,
	signer *xcrypto.PrivateKey,
) (ValidationReply, error) {
	for _, cc := range codeCommitments {
		if err := ValidateCodeCommitment(codes, cc); err != nil {
			return ValidationReply{}, err
		}
	}
	for _, br := range blockRequests {
		if err := ValidateBlockCommitment(blocks, chain, br); err != nil {
			return ValidationReply{}, err
		}
	}
	sig, err := signer.ContractSignature(routerAddress, req.Digest)
	if err != nil {
		return ValidationReply{}, err
	}
	return ValidationReply{Digest: req.Digest, Signature: sig}, nil
}
