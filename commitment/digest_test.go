package commitment

import (
	"testing"

	"github.com/gear-tech/gear-sub008/common"
)

func TestBatchCommitmentDigestIsDeterministic(t *testing.T) {
	b := BatchCommitment{
		BlockHash:     common.Hash{1},
		Timestamp:     42,
		PreviousBatch: common.Hash{2},
		CodeCommitments: []CodeCommitment{
			{Id: common.Hash{3}, Timestamp: 1, Valid: true},
		},
	}
	d1 := b.Digest()
	d2 := b.Digest()
	if d1 != d2 {
		t.Fatalf("digest is not deterministic")
	}
	if d1.Zero() {
		t.Fatalf("digest must not be zero for a non-empty commitment")
	}
}

func TestBatchCommitmentDigestChangesWithContent(t *testing.T) {
	base := BatchCommitment{BlockHash: common.Hash{1}, Timestamp: 1}
	changed := base
	changed.Timestamp = 2
	if base.Digest() == changed.Digest() {
		t.Fatalf("digest must change when timestamp changes")
	}
}

func TestBatchCommitmentDigestCoversChainCommitment(t *testing.T) {
	base := BatchCommitment{BlockHash: common.Hash{1}}
	withChain := base
	withChain.ChainCommitment = &ChainCommitment{
		GearBlocks: []GearBlock{{Hash: common.Hash{9}, Timestamp: 7}},
	}
	if base.Digest() == withChain.Digest() {
		t.Fatalf("digest must differ once a chain commitment is attached")
	}
}

func TestValidationRequestDigestDependsOnBlockOrder(t *testing.T) {
	req := ValidationRequest{
		Digest: common.Hash{1},
		Blocks: []common.Hash{{2}, {3}},
		Codes:  []common.CodeId{{4}},
	}
	d1 := req.RequestDigest()
	req2 := req
	req2.Blocks = []common.Hash{{3}, {2}}
	if d1 == req2.RequestDigest() {
		t.Fatalf("block ordering must affect the digest")
	}
}
