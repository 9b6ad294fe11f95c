package commitment

import (
	"errors"
	"fmt"

	"github.com/gear-tech/gear-sub008/common"
)

// CodeStatusStore resolves a code's local validation timestamp and
// verdict (spec.md §4.9, grounded on original_source's
// CodesStorageRead::code_valid + code_blob_info pair).
type CodeStatusStore interface {
	CodeTimestamp(id common.CodeId) (uint64, bool)
	CodeValid(id common.CodeId) (bool, bool)
}

// BlockMetaStore resolves per-block commitment metadata (spec.md §6
// BlockHeader/BlockOutcome/PreviousNotEmptyBlock/BlockComputed).
type BlockMetaStore interface {
	BlockComputed(hash common.Hash) bool
	BlockHeader(hash common.Hash) (height uint64, timestamp uint64, parentHash common.Hash, ok bool)
	BlockOutcome(hash common.Hash) ([]StateTransition, bool)
	PreviousNotEmptyBlock(hash common.Hash) (common.Hash, bool)
}

// ErrCodeNotFound is returned by AggregateCodeCommitments when
// failIfNotFound is set and a requested code has no local status.
var ErrCodeNotFound = errors.New("commitment: code status not found locally")

// AggregateCodeCommitments builds one CodeCommitment per code id that has a
// locally known validation verdict (spec.md §4.9 "aggregate_code_commitments").
func AggregateCodeCommitments(store CodeStatusStore, codes []common.CodeId, failIfNotFound bool) ([]CodeCommitment, error) {
	out := make([]CodeCommitment, 0, len(codes))
	for _, id := range codes {
		valid, ok := store.CodeValid(id)
		if !ok {
			if failIfNotFound {
				return nil, fmt.Errorf("%w: %s", ErrCodeNotFound, id)
			}
			continue
		}
		ts, _ := store.CodeTimestamp(id)
		out = append(out, CodeCommitment{Id: id, Timestamp: ts, Valid: valid})
	}
	return out, nil
}

// ErrBlockNotComputed is returned by AggregateChainCommitment when
// failIfNotComputed is set and a requested block was never computed.
var ErrBlockNotComputed = errors.New("commitment: block not computed locally")

// AggregateChainCommitment folds the given blocks (oldest first) into a
// single ChainCommitment, or nil if blocks is empty (spec.md §4.9
// "aggregate_chain_commitment").
func AggregateChainCommitment(store BlockMetaStore, blocks []common.Hash, failIfNotComputed bool) (*ChainCommitment, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	cc := &ChainCommitment{}
	for _, hash := range blocks {
		if !store.BlockComputed(hash) {
			if failIfNotComputed {
				return nil, fmt.Errorf("%w: %s", ErrBlockNotComputed, hash)
			}
			continue
		}
		_, timestamp, parent, ok := store.BlockHeader(hash)
		if !ok {
			if failIfNotComputed {
				return nil, fmt.Errorf("commitment: missing header for %s", hash)
			}
			continue
		}
		transitions, _ := store.BlockOutcome(hash)
		prevNotEmpty, _ := store.PreviousNotEmptyBlock(hash)
		cc.Transitions = append(cc.Transitions, transitions...)
		cc.GearBlocks = append(cc.GearBlocks, GearBlock{
			Hash: hash, Timestamp: timestamp, PreviousNotEmptyBlock: prevNotEmpty,
			PredecessorBlock: parent, Transitions: transitions,
		})
	}
	if len(cc.GearBlocks) == 0 {
		return nil, nil
	}
	return cc, nil
}

// SquashChainCommitments concatenates the transitions and gear blocks of
// every input in order, returning nil for an empty input (spec.md §4.9
// "Squashing"). Duplicate suppression across inputs is left to callers —
// the spec marks it an open optimisation, not a correctness requirement.
func SquashChainCommitments(commitments []*ChainCommitment) *ChainCommitment {
	if len(commitments) == 0 {
		return nil
	}
	out := &ChainCommitment{}
	for _, c := range commitments {
		if c == nil {
			continue
		}
		out.Transitions = append(out.Transitions, c.Transitions...)
		out.GearBlocks = append(out.GearBlocks, c.GearBlocks...)
	}
	return out
}
