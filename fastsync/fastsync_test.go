package fastsync

import (
	"context"
	"errors"
	"testing"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/storage"
)

func hashN(b byte) common.Hash {
	var h common.Hash
	h[0] = b
	return h
}

func TestCollectEventDataWalksBackToLatestCommitted(t *testing.T) {
	db := storage.New()

	genesis := hashN(1)
	db.PutBlockHeader(genesis, storage.BlockHeader{Height: 1})
	db.SetBlockComputed(genesis, true)

	mid := hashN(2)
	actor := common.ActorId(hashN(9))
	db.PutBlockHeader(mid, storage.BlockHeader{Height: 2, ParentHash: genesis})
	db.PutBlockEvents(mid, []storage.BlockEvent{
		{Kind: storage.EventStateChanged, Actor: actor, StateHash: hashN(42)},
		{Kind: storage.EventBlockCommitted, CommittedBlock: mid},
	})

	head := hashN(3)
	db.PutBlockHeader(head, storage.BlockHeader{Height: 3, ParentHash: mid})
	db.PutBlockEvents(head, nil)

	ed, err := CollectEventData(db, head)
	if err != nil {
		t.Fatalf("CollectEventData: %v", err)
	}
	if ed.LatestCommittedBlock != mid {
		t.Fatalf("expected latest committed block %v, got %v", mid, ed.LatestCommittedBlock)
	}
	if got := ed.ProgramStates[actor]; got != hashN(42) {
		t.Fatalf("expected state hash recorded for actor, got %v", got)
	}
}

func TestCollectEventDataErrorsWithoutCommittedBlock(t *testing.T) {
	db := storage.New()
	head := hashN(1)
	db.PutBlockHeader(head, storage.BlockHeader{Height: 1})
	db.SetBlockComputed(head, true)

	if _, err := CollectEventData(db, head); !errors.Is(err, ErrNoCommittedBlock) {
		t.Fatalf("expected ErrNoCommittedBlock, got %v", err)
	}
}

// stubFetcher answers every hash with a 1-byte payload, unless configured to
// fail the first call (to exercise Drain's re-enqueue-on-failure path).
type stubFetcher struct {
	failOnce bool
	failed   bool
	calls    int
}

func (f *stubFetcher) FetchBlobs(_ context.Context, hashes []common.Hash) (map[common.Hash][]byte, error) {
	f.calls++
	if f.failOnce && !f.failed {
		f.failed = true
		return nil, errors.New("simulated network failure")
	}
	out := make(map[common.Hash][]byte, len(hashes))
	for _, h := range hashes {
		out[h] = []byte{h[0]}
	}
	return out, nil
}

// noExpand treats every fetched blob as terminal.
type noExpand struct{}

func (noExpand) Expand(Metadata, common.Hash, []byte) []Request { return nil }

func TestRequestManagerDrainFetchesAndPersists(t *testing.T) {
	db := storage.New()
	m, err := NewRequestManager(db, &stubFetcher{}, noExpand{}, 16)
	if err != nil {
		t.Fatalf("NewRequestManager: %v", err)
	}

	h := hashN(7)
	m.Add(h, MetaData)
	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if !db.HasBlob(h) {
		t.Fatalf("expected blob %v to be persisted after Drain", h)
	}
	completed, total := m.Stats()
	if completed != 1 || total != 1 {
		t.Fatalf("expected stats (1, 1), got (%d, %d)", completed, total)
	}
}

func TestRequestManagerDrainSkipsAlreadyStoredBlob(t *testing.T) {
	db := storage.New()
	h := hashN(5)
	db.PutBlob(h, []byte{5})

	fetcher := &stubFetcher{}
	m, err := NewRequestManager(db, fetcher, noExpand{}, 16)
	if err != nil {
		t.Fatalf("NewRequestManager: %v", err)
	}
	m.Add(h, MetaData)
	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("fetcher should not be called for a blob already in storage, got %d calls", fetcher.calls)
	}
}

func TestRequestManagerDrainRetriesFailedBatch(t *testing.T) {
	db := storage.New()
	fetcher := &stubFetcher{failOnce: true}
	m, err := NewRequestManager(db, fetcher, noExpand{}, 16)
	if err != nil {
		t.Fatalf("NewRequestManager: %v", err)
	}

	h := hashN(3)
	m.Add(h, MetaProgramState)
	if err := m.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !db.HasBlob(h) {
		t.Fatalf("expected blob to be persisted after retry succeeded")
	}
}

// stubObserver reports a fixed finalized head.
type stubObserver struct{ head common.Hash }

func (o stubObserver) ForceSyncFinalizedHead(context.Context) (common.Hash, error) {
	return o.head, nil
}

// stubCompute records which codes it was asked to instrument.
type stubCompute struct{ instrumented []common.CodeId }

func (c *stubCompute) Instrument(_ context.Context, id common.CodeId) error {
	c.instrumented = append(c.instrumented, id)
	return nil
}

func TestRunConvergesFastSync(t *testing.T) {
	db := storage.New()

	genesis := hashN(1)
	db.PutBlockHeader(genesis, storage.BlockHeader{Height: 1})
	db.SetBlockComputed(genesis, true)

	p1, p2 := common.ActorId(hashN(0x11)), common.ActorId(hashN(0x12))
	c1, c2, c3 := common.CodeId(hashN(0x21)), common.CodeId(hashN(0x22)), common.CodeId(hashN(0x23))
	stateHash1, stateHash2 := hashN(0x31), hashN(0x32)

	head := hashN(2)
	db.PutBlockHeader(head, storage.BlockHeader{Height: 2, ParentHash: genesis})
	db.PutBlockEvents(head, []storage.BlockEvent{
		{Kind: storage.EventProgramCreated, Actor: p1, Code: c1},
		{Kind: storage.EventProgramCreated, Actor: p2, Code: c2},
		{Kind: storage.EventStateChanged, Actor: p1, StateHash: stateHash1},
		{Kind: storage.EventStateChanged, Actor: p2, StateHash: stateHash2},
		{Kind: storage.EventCodeGotValidated, CodeId: c3, Valid: true},
		{Kind: storage.EventBlockCommitted, CommittedBlock: head},
	})

	observer := stubObserver{head: head}
	compute := &stubCompute{}
	fetcher := &stubFetcher{}

	synced, err := Run(context.Background(), db, observer, compute, fetcher, noExpand{}, 16)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if synced != head {
		t.Fatalf("expected synced block %v, got %v", head, synced)
	}

	states := db.BlockProgramStates(synced)
	if states[p1] != stateHash1 || states[p2] != stateHash2 {
		t.Fatalf("expected both programs present in BlockProgramStates, got %+v", states)
	}
	if len(compute.instrumented) != 1 || compute.instrumented[0] != c3 {
		t.Fatalf("expected code %v instrumented, got %+v", c3, compute.instrumented)
	}
	if !db.BlockComputed(synced) {
		t.Fatalf("expected synced block to be marked computed")
	}
	if q := db.BlockCommitmentQueue(synced); len(q) != 0 {
		t.Fatalf("expected empty commitment queue, got %+v", q)
	}
	if q := db.BlockCodesQueue(synced); len(q) != 0 {
		t.Fatalf("expected empty codes queue, got %+v", q)
	}
	if !db.IsProgram(p1) || !db.IsProgram(p2) {
		t.Fatalf("expected both programs installed")
	}
}

func TestRequestManagerAddIsIdempotent(t *testing.T) {
	db := storage.New()
	m, err := NewRequestManager(db, &stubFetcher{}, noExpand{}, 16)
	if err != nil {
		t.Fatalf("NewRequestManager: %v", err)
	}
	h := hashN(1)
	m.Add(h, MetaData)
	m.Add(h, MetaData)
	_, total := m.Stats()
	if total != 1 {
		t.Fatalf("expected Add to be idempotent, got total=%d", total)
	}
}
