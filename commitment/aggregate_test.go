package commitment

import (
	"errors"
	"testing"

	"github.com/gear-tech/gear-sub008/common"
)

type fakeCodeStore struct {
	timestamps map[common.CodeId]uint64
	valid      map[common.CodeId]bool
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{timestamps: make(map[common.CodeId]uint64), valid: make(map[common.CodeId]bool)}
}

func (s *fakeCodeStore) CodeTimestamp(id common.CodeId) (uint64, bool) {
	ts, ok := s.timestamps[id]
	return ts, ok
}
func (s *fakeCodeStore) CodeValid(id common.CodeId) (bool, bool) {
	v, ok := s.valid[id]
	return v, ok
}

func TestAggregateCodeCommitmentsSkipsUnknownByDefault(t *testing.T) {
	store := newFakeCodeStore()
	store.timestamps[common.Hash{1}] = 10
	store.valid[common.Hash{1}] = true

	out, err := AggregateCodeCommitments(store, []common.CodeId{{1}, {2}}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Id != (common.Hash{1}) {
		t.Fatalf("expected only the known code, got %+v", out)
	}
}

func TestAggregateCodeCommitmentsFailsWhenRequired(t *testing.T) {
	store := newFakeCodeStore()
	_, err := AggregateCodeCommitments(store, []common.CodeId{{9}}, true)
	if !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

type fakeBlockMeta struct {
	computed     map[common.Hash]bool
	headers      map[common.Hash][3]uint64 // height, timestamp; parentHash tracked separately
	parents      map[common.Hash]common.Hash
	outcomes     map[common.Hash][]StateTransition
	previousNotEmpty map[common.Hash]common.Hash
}

func newFakeBlockMeta() *fakeBlockMeta {
	return &fakeBlockMeta{
		computed: make(map[common.Hash]bool), headers: make(map[common.Hash][3]uint64),
		parents: make(map[common.Hash]common.Hash), outcomes: make(map[common.Hash][]StateTransition),
		previousNotEmpty: make(map[common.Hash]common.Hash),
	}
}

func (s *fakeBlockMeta) BlockComputed(hash common.Hash) bool { return s.computed[hash] }
func (s *fakeBlockMeta) BlockHeader(hash common.Hash) (uint64, uint64, common.Hash, bool) {
	h, ok := s.headers[hash]
	return h[0], h[1], s.parents[hash], ok
}
func (s *fakeBlockMeta) BlockOutcome(hash common.Hash) ([]StateTransition, bool) {
	tr, ok := s.outcomes[hash]
	return tr, ok
}
func (s *fakeBlockMeta) PreviousNotEmptyBlock(hash common.Hash) (common.Hash, bool) {
	h, ok := s.previousNotEmpty[hash]
	return h, ok
}

func TestAggregateChainCommitmentEmptyInputReturnsNil(t *testing.T) {
	store := newFakeBlockMeta()
	cc, err := AggregateChainCommitment(store, nil, false)
	if err != nil || cc != nil {
		t.Fatalf("expected nil chain commitment for empty input, got %+v, %v", cc, err)
	}
}

func TestAggregateChainCommitmentFoldsComputedBlocks(t *testing.T) {
	store := newFakeBlockMeta()
	a, b := common.Hash{1}, common.Hash{2}
	store.computed[a] = true
	store.computed[b] = true
	store.headers[a] = [3]uint64{10, 100, 0}
	store.headers[b] = [3]uint64{11, 101, 0}
	store.parents[b] = a
	store.outcomes[a] = []StateTransition{{Actor: common.Hash{7}}}
	store.outcomes[b] = []StateTransition{{Actor: common.Hash{8}}}
	store.previousNotEmpty[a] = common.Hash{}
	store.previousNotEmpty[b] = a

	cc, err := AggregateChainCommitment(store, []common.Hash{a, b}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(cc.GearBlocks) != 2 {
		t.Fatalf("expected 2 gear blocks, got %d", len(cc.GearBlocks))
	}
	if len(cc.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(cc.Transitions))
	}
}

func TestAggregateChainCommitmentFailsOnUncomputedWhenRequired(t *testing.T) {
	store := newFakeBlockMeta()
	_, err := AggregateChainCommitment(store, []common.Hash{{1}}, true)
	if !errors.Is(err, ErrBlockNotComputed) {
		t.Fatalf("expected ErrBlockNotComputed, got %v", err)
	}
}

func TestSquashChainCommitmentsConcatenatesInOrder(t *testing.T) {
	c1 := &ChainCommitment{Transitions: []StateTransition{{Actor: common.Hash{1}}}, GearBlocks: []GearBlock{{Hash: common.Hash{1}}}}
	c2 := &ChainCommitment{Transitions: []StateTransition{{Actor: common.Hash{2}}}, GearBlocks: []GearBlock{{Hash: common.Hash{2}}}}
	out := SquashChainCommitments([]*ChainCommitment{c1, c2})
	if len(out.Transitions) != 2 || out.Transitions[0].Actor != (common.Hash{1}) || out.Transitions[1].Actor != (common.Hash{2}) {
		t.Fatalf("unexpected squashed transitions: %+v", out.Transitions)
	}
	if len(out.GearBlocks) != 2 {
		t.Fatalf("expected 2 gear blocks, got %d", len(out.GearBlocks))
	}
}

func TestSquashChainCommitmentsEmptyReturnsNil(t *testing.T) {
	if SquashChainCommitments(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
}
