package commitment

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// Encode renders b per spec.md §6's wire format: block_hash(32) ||
// timestamp(u64) || previous_batch(32) || opt<ChainCommitment> ||
// vec<CodeCommitment{id(32)||valid(u8)}> || opt<ValidatorsCommitment> ||
// opt<RewardsCommitment>. Optional fields are a presence byte followed by
// their encoding; vectors are length-prefixed with a little-endian u32.
func (b BatchCommitment) Encode() []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, b.BlockHash.Bytes()...)
	buf = appendU64(buf, b.Timestamp)
	buf = append(buf, b.PreviousBatch.Bytes()...)
	buf = appendOption(buf, b.ChainCommitment != nil, func(buf []byte) []byte {
		return b.ChainCommitment.encode(buf)
	})

	buf = appendU32(buf, uint32(len(b.CodeCommitments)))
	for _, cc := range b.CodeCommitments {
		buf = append(buf, cc.Id.Bytes()...)
		if cc.Valid {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	buf = appendOption(buf, b.ValidatorsCommitment != nil, func(buf []byte) []byte {
		buf = append(buf, b.ValidatorsCommitment.ValidatorsSetHash.Bytes()...)
		return appendU64(buf, b.ValidatorsCommitment.EraIndex)
	})
	buf = appendOption(buf, b.RewardsCommitment != nil, func(buf []byte) []byte {
		buf = append(buf, b.RewardsCommitment.RewardsRootHash.Bytes()...)
		return appendU64(buf, b.RewardsCommitment.EraIndex)
	})

	return buf
}

// Digest returns the Keccak256 digest of b's encoding (spec.md §6).
func (b BatchCommitment) Digest() common.Hash {
	return xcrypto.Keccak256Hash(b.Encode())
}

func (c *ChainCommitment) encode(buf []byte) []byte {
	buf = appendU32(buf, uint32(len(c.Transitions)))
	for _, tr := range c.Transitions {
		buf = tr.encode(buf)
	}
	buf = appendU32(buf, uint32(len(c.GearBlocks)))
	for _, gb := range c.GearBlocks {
		buf = gb.encode(buf)
	}
	return buf
}

func (tr StateTransition) encode(buf []byte) []byte {
	buf = append(buf, tr.Actor.Bytes()...)
	buf = append(buf, tr.NewStateHash.Bytes()...)
	if tr.Exited {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, tr.InheritorActor.Bytes()...)
	buf = appendU256(buf, tr.ValueToReceive)
	buf = appendU32(buf, uint32(len(tr.Messages)))
	for _, m := range tr.Messages {
		buf = append(buf, m.Id.Bytes()...)
		buf = append(buf, m.Destination.Bytes()...)
		buf = appendU256(buf, m.Value)
		buf = appendU32(buf, uint32(len(m.Payload)))
		buf = append(buf, m.Payload...)
	}
	return buf
}

// appendU256 encodes v as 32 big-endian bytes, treating nil as zero (a
// transition that moves no value never constructs one).
func appendU256(buf []byte, v *uint256.Int) []byte {
	if v == nil {
		v = new(uint256.Int)
	}
	b := v.Bytes32()
	return append(buf, b[:]...)
}

func (gb GearBlock) encode(buf []byte) []byte {
	buf = append(buf, gb.Hash.Bytes()...)
	buf = appendU64(buf, gb.Timestamp)
	buf = append(buf, gb.PreviousNotEmptyBlock.Bytes()...)
	buf = append(buf, gb.PredecessorBlock.Bytes()...)
	buf = appendU32(buf, uint32(len(gb.Transitions)))
	for _, tr := range gb.Transitions {
		buf = tr.encode(buf)
	}
	return buf
}

// RequestDigest computes the ToDigest hash of a ValidationRequest itself
// (distinct from its Digest field, which carries the batch digest being
// validated): Keccak256 over the batch digest, then the blocks and codes in
// order, each list length-prefixed.
func (r ValidationRequest) RequestDigest() common.Hash {
	buf := make([]byte, 0, 64)
	buf = append(buf, r.Digest.Bytes()...)
	buf = appendU32(buf, uint32(len(r.Blocks)))
	for _, h := range r.Blocks {
		buf = append(buf, h.Bytes()...)
	}
	buf = appendU32(buf, uint32(len(r.Codes)))
	for _, c := range r.Codes {
		buf = append(buf, c.Bytes()...)
	}
	return xcrypto.Keccak256Hash(buf)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendOption(buf []byte, present bool, enc func([]byte) []byte) []byte {
	if !present {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return enc(buf)
}
