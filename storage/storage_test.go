package storage

import (
	"bytes"
	"testing"

	"github.com/gear-tech/gear-sub008/commitment"
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/scheduler"
)

func TestProgramRoundTrip(t *testing.T) {
	s := New()
	actor := common.Hash{1}
	if _, ok := s.Program(actor); ok {
		t.Fatalf("expected no program before PutProgram")
	}
	s.PutProgram(actor, ProgramState{CodeId: common.Hash{2}, MemoryInfix: 3})
	got, ok := s.Program(actor)
	if !ok || got.CodeId != (common.Hash{2}) || got.MemoryInfix != 3 {
		t.Fatalf("unexpected program state: %+v, ok=%v", got, ok)
	}
}

func TestCreateProgramDefaultsToActive(t *testing.T) {
	s := New()
	actor := common.Hash{1}
	if err := s.CreateProgram(actor, common.Hash{9}); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	if s.Status(actor) != scheduler.StatusActive {
		t.Fatalf("expected a freshly created program to be active")
	}
	if !s.IsProgram(actor) {
		t.Fatalf("expected IsProgram to report true after CreateProgram")
	}
}

func TestExitSetsHeirAndTerminalStatus(t *testing.T) {
	s := New()
	actor, heir := common.Hash{1}, common.Hash{2}
	if err := s.CreateProgram(actor, common.Hash{9}); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	if err := s.Exit(actor, heir); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if s.Status(actor) == scheduler.StatusActive {
		t.Fatalf("expected an exited program to no longer be active")
	}
	if s.Heir(actor) != heir {
		t.Fatalf("expected Heir to return %v, got %v", heir, s.Heir(actor))
	}
}

func TestApplyPageThenPageLoaderRoundTrip(t *testing.T) {
	s := New()
	actor := common.Hash{1}
	if err := s.CreateProgram(actor, common.Hash{9}); err != nil {
		t.Fatalf("CreateProgram: %v", err)
	}
	data := []byte{1, 2, 3, 4}
	if err := s.ApplyPage(actor, 7, data); err != nil {
		t.Fatalf("ApplyPage: %v", err)
	}
	loader := s.PageLoader(actor)
	got, ok, err := loader.LoadGearPage(7)
	if err != nil {
		t.Fatalf("LoadGearPage: %v", err)
	}
	if !ok || !bytes.Equal(got, data) {
		t.Fatalf("expected %v, got %v (ok=%v)", data, got, ok)
	}
}

func TestPageLoaderMissesOnUnwrittenPage(t *testing.T) {
	s := New()
	loader := s.PageLoader(common.Hash{1})
	_, ok, err := loader.LoadGearPage(0)
	if err != nil {
		t.Fatalf("LoadGearPage: %v", err)
	}
	if ok {
		t.Fatalf("expected a fresh page to be absent")
	}
}

func TestBlockTablesRoundTrip(t *testing.T) {
	s := New()
	block := common.Hash{0xAA}

	s.PutBlockHeader(block, BlockHeader{Height: 10, Timestamp: 100})
	hdr, ok := s.BlockHeader(block)
	if !ok || hdr.Height != 10 {
		t.Fatalf("unexpected header: %+v, ok=%v", hdr, ok)
	}

	events := []BlockEvent{{Kind: EventProgramCreated, Actor: common.Hash{1}, Code: common.Hash{2}}}
	s.PutBlockEvents(block, events)
	if got := s.BlockEvents(block); len(got) != 1 || got[0].Kind != EventProgramCreated {
		t.Fatalf("unexpected events: %+v", got)
	}

	s.SetBlockComputed(block, true)
	if !s.BlockComputed(block) {
		t.Fatalf("expected block to be computed")
	}

	states := map[common.Hash]common.Hash{{1}: {2}}
	s.PutBlockProgramStates(block, states)
	if got := s.BlockProgramStates(block); len(got) != 1 || got[common.Hash{1}] != (common.Hash{2}) {
		t.Fatalf("unexpected program states: %+v", got)
	}
}

func TestBlockQueuesRoundTrip(t *testing.T) {
	s := New()
	block := common.Hash{0xCC}

	s.PutBlockCommitmentQueue(block, []common.Hash{{1}, {2}})
	if got := s.BlockCommitmentQueue(block); len(got) != 2 {
		t.Fatalf("unexpected commitment queue: %+v", got)
	}

	s.PutBlockCodesQueue(block, []common.Hash{{3}})
	if got := s.BlockCodesQueue(block); len(got) != 1 {
		t.Fatalf("unexpected codes queue: %+v", got)
	}

	s.PutBlockCommitmentQueue(block, nil)
	s.PutBlockCodesQueue(block, nil)
	if got := s.BlockCommitmentQueue(block); len(got) != 0 {
		t.Fatalf("expected commitment queue to be empty, got %+v", got)
	}
	if got := s.BlockCodesQueue(block); len(got) != 0 {
		t.Fatalf("expected codes queue to be empty, got %+v", got)
	}
}

func TestCommitmentViewSatisfiesAggregateInterfaces(t *testing.T) {
	s := New()
	code := common.Hash{3}
	s.PutCodeMetadata(code, Metadata{Valid: true, Timestamp: 77})

	block := common.Hash{0xBB}
	parent := common.Hash{0xAA}
	s.PutBlockHeader(block, BlockHeader{Height: 5, Timestamp: 500, ParentHash: parent})
	s.SetBlockComputed(block, true)
	s.PutBlockOutcome(block, []commitment.StateTransition{{Actor: common.Hash{9}}})
	s.SetPreviousNotEmptyBlock(block, parent)

	view := s.View()

	commitments, err := commitment.AggregateCodeCommitments(view, []common.Hash{code}, true)
	if err != nil {
		t.Fatalf("AggregateCodeCommitments: %v", err)
	}
	if len(commitments) != 1 || !commitments[0].Valid || commitments[0].Timestamp != 77 {
		t.Fatalf("unexpected code commitments: %+v", commitments)
	}

	cc, err := commitment.AggregateChainCommitment(view, []common.Hash{block}, true)
	if err != nil {
		t.Fatalf("AggregateChainCommitment: %v", err)
	}
	if cc == nil || len(cc.GearBlocks) != 1 || cc.GearBlocks[0].PredecessorBlock != parent {
		t.Fatalf("unexpected chain commitment: %+v", cc)
	}

	if height, ok := view.BlockHeight(block); !ok || height != 5 {
		t.Fatalf("unexpected BlockHeight: %d, ok=%v", height, ok)
	}
	if p, ok := view.BlockParent(block); !ok || p != parent {
		t.Fatalf("unexpected BlockParent: %v, ok=%v", p, ok)
	}
}
