// Package storage implements the typed key/value maps of spec.md §6: a
// thread-safe in-memory store for every table the scheduler, executor, and
// fast-sync engine read and write. spec.md §1 explicitly delegates
// "persistent key/value storage" to an external collaborator ("we treat
// storage as a typed map with read/write primitives") — this package is
// that typed map, grounded on the teacher's tosdb.KeyValueReader/Writer
// split (a narrow Get/Put/Delete/Has capability, never a raw byte slab)
// and on core/rawdb's per-table typed-accessor-function style, but keeping
// values as Go structs rather than RLP-encoded bytes since no on-disk
// backend is in scope.
package storage

import (
	"sync"

	"github.com/gear-tech/gear-sub008/commitment"
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/lazypage"
	"github.com/gear-tech/gear-sub008/scheduler"
	"github.com/gear-tech/gear-sub008/taskpool"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

// ProgramStatus aliases scheduler.ProgramStatus so storage's ProgramState
// never needs a conversion at the scheduler.Programs boundary.
type ProgramStatus = scheduler.ProgramStatus

// CodeVersion distinguishes instrumentation schema revisions for the same
// CodeId (spec.md §6 "InstrumentedCode: (Version, CodeId) -> bytes").
type CodeVersion uint32

// Metadata is spec.md §6's CodeMetadata: the facts recorded about a code
// id's validation, independent of the instrumented bytes themselves.
type Metadata struct {
	OriginalCodeLen     uint32
	InstrumentedCodeLen uint32
	Valid               bool
	ExportsInit         bool
	Timestamp           uint64
}

// ProgramState is spec.md §3 "Program state" plus its terminal flags,
// persisted per ActorId.
type ProgramState struct {
	CodeId       common.CodeId
	MemoryInfix  uint32
	Allocations  []uint32 // allocated WasmPage numbers; an interval-tree in the source, a sorted slice here
	Reservations map[common.ReservationId]ReservationEntry
	Status       ProgramStatus
	Heir         common.ActorId
}

// ReservationEntry is one program's spec.md §3 "Reservation map" entry.
type ReservationEntry struct {
	Amount      uint64
	FinishBlock uint64
	Lock        uint64
}

// BlockHeader is spec.md §6's BlockHeader table value.
type BlockHeader struct {
	Height     uint64
	Timestamp  uint64
	ParentHash common.Hash
}

// pageKey addresses one GearPage of one program's memory (spec.md §6
// "Pages: (ActorId, MemoryInfix, GearPage) -> content-address").
type pageKey struct {
	Actor       common.ActorId
	MemoryInfix uint32
	Page        uint32
}

// codeKey addresses one (Version, CodeId) instrumented-code entry.
type codeKey struct {
	Version CodeVersion
	Code    common.CodeId
}

// Store is the module-wide typed map (spec.md §6). Every table is guarded
// by the same mutex, taken once per method call: each call is atomic on
// its own, but a sequence of calls is not atomic as a whole, and no table is ever
// larger than a single block's worth of contention can bear in this
// reference implementation.
type Store struct {
	mu sync.RWMutex

	programs         map[common.ActorId]ProgramState
	originalCode     map[common.CodeId][]byte
	instrumentedCode map[codeKey][]byte
	codeMetadata     map[common.CodeId]Metadata
	pages            map[pageKey]common.Hash // content address into pageBlobs
	pageBlobs        map[common.Hash][]byte
	blobs            map[common.Hash][]byte // generic content-addressed blobs (fast sync, C10)

	blockHeader        map[common.Hash]BlockHeader
	blockEvents        map[common.Hash][]BlockEvent
	blockOutcome       map[common.Hash][]commitment.StateTransition
	blockComputed      map[common.Hash]bool
	blockProgramStates map[common.Hash]map[common.ActorId]common.Hash
	blockSchedule      map[common.Hash]*taskpool.Pool
	commitmentQueue    map[common.Hash][]common.Hash
	codesQueue         map[common.Hash][]common.CodeId
	previousNotEmpty   map[common.Hash]common.Hash
	lastCommittedBatch map[common.Hash]common.Hash
}

// BlockEvent is one entry of spec.md §6's BlockEvents table; the variant
// set fast sync (C10) needs to recognize (spec.md §4.10 step 2).
type BlockEvent struct {
	Kind EventKind

	// BlockCommitted
	CommittedBlock common.Hash

	// StateChanged
	Actor     common.ActorId
	StateHash common.Hash

	// ProgramCreated
	Code common.CodeId

	// CodeGotValidated
	CodeId common.CodeId
	Valid  bool
}

// EventKind tags a BlockEvent's variant (spec.md §4.10 step 2).
type EventKind uint8

const (
	EventBlockCommitted EventKind = iota
	EventStateChanged
	EventProgramCreated
	EventCodeGotValidated
)

// New returns an empty Store.
func New() *Store {
	return &Store{
		programs:           make(map[common.ActorId]ProgramState),
		originalCode:       make(map[common.CodeId][]byte),
		instrumentedCode:   make(map[codeKey][]byte),
		codeMetadata:       make(map[common.CodeId]Metadata),
		pages:              make(map[pageKey]common.Hash),
		pageBlobs:          make(map[common.Hash][]byte),
		blobs:              make(map[common.Hash][]byte),
		blockHeader:        make(map[common.Hash]BlockHeader),
		blockEvents:        make(map[common.Hash][]BlockEvent),
		blockOutcome:       make(map[common.Hash][]commitment.StateTransition),
		blockComputed:      make(map[common.Hash]bool),
		blockProgramStates: make(map[common.Hash]map[common.ActorId]common.Hash),
		blockSchedule:      make(map[common.Hash]*taskpool.Pool),
		commitmentQueue:    make(map[common.Hash][]common.Hash),
		codesQueue:         make(map[common.Hash][]common.CodeId),
		previousNotEmpty:   make(map[common.Hash]common.Hash),
		lastCommittedBatch: make(map[common.Hash]common.Hash),
	}
}

// Program returns the stored state for actor, and whether it exists.
func (s *Store) Program(actor common.ActorId) (ProgramState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[actor]
	return p, ok
}

// PutProgram upserts a program's state.
func (s *Store) PutProgram(actor common.ActorId, p ProgramState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[actor] = p
}

// OriginalCode returns a code id's unmodified source bytes.
func (s *Store) OriginalCode(id common.CodeId) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.originalCode[id]
	return b, ok
}

// PutOriginalCode stores a code id's unmodified source bytes.
func (s *Store) PutOriginalCode(id common.CodeId, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.originalCode[id] = b
}

// InstrumentedCode returns the instrumented bytes for (version, id).
func (s *Store) InstrumentedCode(version CodeVersion, id common.CodeId) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.instrumentedCode[codeKey{version, id}]
	return b, ok
}

// PutInstrumentedCode stores the instrumented bytes for (version, id).
func (s *Store) PutInstrumentedCode(version CodeVersion, id common.CodeId, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instrumentedCode[codeKey{version, id}] = b
}

// CodeMetadata returns a code id's recorded validation metadata.
func (s *Store) CodeMetadata(id common.CodeId) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.codeMetadata[id]
	return m, ok
}

// PutCodeMetadata stores a code id's validation metadata.
func (s *Store) PutCodeMetadata(id common.CodeId, m Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeMetadata[id] = m
}

// HasBlob reports whether a generic content-addressed blob is already
// stored locally (spec.md §4.10 step 4: fast sync skips a request once
// "the database has keys").
func (s *Store) HasBlob(hash common.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[hash]
	return ok
}

// Blob returns a generic content-addressed blob's bytes.
func (s *Store) Blob(hash common.Hash) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[hash]
	return b, ok
}

// PutBlob stores a generic content-addressed blob, keyed by its own
// content address (caller-supplied, since different hash domains — e.g.
// program state vs. memory page region — use different preimages).
func (s *Store) PutBlob(hash common.Hash, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[hash] = data
}

// ProgramPageLoader binds a Store to one program's memory infix, giving
// lazypage.NewHandler a StorageLoader scoped to that program for the
// duration of one execution (spec.md §4.3: per-execution demand paging).
type ProgramPageLoader struct {
	store       *Store
	actor       common.ActorId
	memoryInfix uint32
}

// PageLoader returns a lazypage.StorageLoader for actor, reading its
// current memory infix from the stored program state. Implements
// scheduler.PageLoaders.
func (s *Store) PageLoader(actor common.ActorId) lazypage.StorageLoader {
	p, _ := s.Program(actor)
	return &ProgramPageLoader{store: s, actor: actor, memoryInfix: p.MemoryInfix}
}

// LoadGearPage implements lazypage.StorageLoader: resolves the page
// through its content address into the blob table.
func (l *ProgramPageLoader) LoadGearPage(p lazypage.GearPage) (data []byte, ok bool, err error) {
	l.store.mu.RLock()
	defer l.store.mu.RUnlock()
	addr, present := l.store.pages[pageKey{l.actor, l.memoryInfix, uint32(p)}]
	if !present {
		return nil, false, nil
	}
	blob, present := l.store.pageBlobs[addr]
	return blob, present, nil
}

// ApplyPage implements scheduler.PageStore: persists a page's bytes as a
// content-addressed blob and records the address under the program's page
// key (spec.md §4.5 step 6, journal.UpdatePage).
func (s *Store) ApplyPage(actor common.ActorId, page uint32, data []byte) error {
	addr := xcrypto.Blake2b256(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.programs[actor]
	s.pageBlobs[addr] = data
	s.pages[pageKey{actor, p.MemoryInfix, page}] = addr
	return nil
}

// ApplyAllocations implements scheduler.PageStore (journal.UpdateAllocations).
func (s *Store) ApplyAllocations(actor common.ActorId, pages []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.programs[actor]
	p.Allocations = append([]uint32(nil), pages...)
	s.programs[actor] = p
	return nil
}

// CreateProgram implements scheduler.PageStore (journal.StoreNewPrograms).
func (s *Store) CreateProgram(actor common.ActorId, code common.CodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[actor] = ProgramState{
		CodeId:       code,
		Reservations: make(map[common.ReservationId]ReservationEntry),
		Status:       scheduler.StatusActive,
	}
	return nil
}

// Exit implements scheduler.PageStore (journal.ExitDispatch): flips a
// program to the Exited terminal state (spec.md §3 "Program state").
func (s *Store) Exit(actor common.ActorId, heir common.ActorId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.programs[actor]
	p.Status = scheduler.StatusExited
	p.Heir = heir
	s.programs[actor] = p
	return nil
}

// Status implements scheduler.Programs.
func (s *Store) Status(actor common.ActorId) ProgramStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.programs[actor].Status
}

// Heir implements scheduler.Programs.
func (s *Store) Heir(actor common.ActorId) common.ActorId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.programs[actor].Heir
}

// IsProgram implements scheduler.Programs.
func (s *Store) IsProgram(actor common.ActorId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.programs[actor]
	return ok
}

// BlockHeader returns a block's header.
func (s *Store) BlockHeader(hash common.Hash) (BlockHeader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.blockHeader[hash]
	return h, ok
}

// PutBlockHeader stores a block's header.
func (s *Store) PutBlockHeader(hash common.Hash, h BlockHeader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockHeader[hash] = h
}

// BlockEvents returns a block's recorded events.
func (s *Store) BlockEvents(hash common.Hash) []BlockEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]BlockEvent(nil), s.blockEvents[hash]...)
}

// PutBlockEvents stores a block's events, replacing any prior value.
func (s *Store) PutBlockEvents(hash common.Hash, events []BlockEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockEvents[hash] = append([]BlockEvent(nil), events...)
}

// BlockOutcome returns a block's committed state transitions.
func (s *Store) BlockOutcome(hash common.Hash) []commitment.StateTransition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blockOutcome[hash]
}

// PutBlockOutcome stores a block's committed state transitions.
func (s *Store) PutBlockOutcome(hash common.Hash, out []commitment.StateTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockOutcome[hash] = out
}

// BlockComputed reports whether a block has finished local computation.
func (s *Store) BlockComputed(hash common.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blockComputed[hash]
}

// SetBlockComputed marks a block computed or not.
func (s *Store) SetBlockComputed(hash common.Hash, computed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockComputed[hash] = computed
}

// BlockProgramStates returns the per-program state-hash map recorded for a
// block (spec.md §6 "BlockProgramStates").
func (s *Store) BlockProgramStates(hash common.Hash) map[common.ActorId]common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blockProgramStates[hash]
}

// PutBlockProgramStates stores the per-program state-hash map for a block.
func (s *Store) PutBlockProgramStates(hash common.Hash, m map[common.ActorId]common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockProgramStates[hash] = m
}

// BlockSchedule returns the task pool restored/persisted at a block.
func (s *Store) BlockSchedule(hash common.Hash) (*taskpool.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.blockSchedule[hash]
	return p, ok
}

// PutBlockSchedule stores the task pool at a block.
func (s *Store) PutBlockSchedule(hash common.Hash, p *taskpool.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockSchedule[hash] = p
}

// BlockCommitmentQueue returns the block hashes still awaiting inclusion
// in a batch commitment as of hash (spec.md §6 "block_commitment_queue").
func (s *Store) BlockCommitmentQueue(hash common.Hash) []common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.Hash(nil), s.commitmentQueue[hash]...)
}

// PutBlockCommitmentQueue stores hash's pending commitment queue.
func (s *Store) PutBlockCommitmentQueue(hash common.Hash, queue []common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitmentQueue[hash] = append([]common.Hash(nil), queue...)
}

// BlockCodesQueue returns the code ids still awaiting a code commitment as
// of hash (spec.md §6 "block_codes_queue").
func (s *Store) BlockCodesQueue(hash common.Hash) []common.CodeId {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.CodeId(nil), s.codesQueue[hash]...)
}

// PutBlockCodesQueue stores hash's pending codes queue.
func (s *Store) PutBlockCodesQueue(hash common.Hash, queue []common.CodeId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codesQueue[hash] = append([]common.CodeId(nil), queue...)
}

// PreviousNotEmptyBlock returns the nearest ancestor block that produced a
// non-empty chain commitment.
func (s *Store) PreviousNotEmptyBlock(hash common.Hash) (common.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.previousNotEmpty[hash]
	return h, ok
}

// SetPreviousNotEmptyBlock records hash's nearest non-empty ancestor.
func (s *Store) SetPreviousNotEmptyBlock(hash, prev common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previousNotEmpty[hash] = prev
}

// CommitmentView adapts a Store to the read-only shape commitment's
// aggregation and participant-validation functions need (spec.md §4.9),
// so the commitment package never depends on storage's concrete Store
// type, only on its own narrow CodeStatusStore/BlockMetaStore/ChainLookup
// interfaces.
type CommitmentView struct {
	store *Store
}

// View returns a CommitmentView over s.
func (s *Store) View() *CommitmentView { return &CommitmentView{store: s} }

// CodeTimestamp implements commitment.CodeStatusStore.
func (v *CommitmentView) CodeTimestamp(id common.CodeId) (uint64, bool) {
	m, ok := v.store.CodeMetadata(id)
	if !ok {
		return 0, false
	}
	return m.Timestamp, true
}

// CodeValid implements commitment.CodeStatusStore.
func (v *CommitmentView) CodeValid(id common.CodeId) (bool, bool) {
	m, ok := v.store.CodeMetadata(id)
	if !ok {
		return false, false
	}
	return m.Valid, true
}

// BlockComputed implements commitment.BlockMetaStore.
func (v *CommitmentView) BlockComputed(hash common.Hash) bool { return v.store.BlockComputed(hash) }

// BlockHeader implements commitment.BlockMetaStore.
func (v *CommitmentView) BlockHeader(hash common.Hash) (height uint64, timestamp uint64, parentHash common.Hash, ok bool) {
	h, ok := v.store.BlockHeader(hash)
	return h.Height, h.Timestamp, h.ParentHash, ok
}

// BlockOutcome implements commitment.BlockMetaStore.
func (v *CommitmentView) BlockOutcome(hash common.Hash) ([]commitment.StateTransition, bool) {
	out := v.store.BlockOutcome(hash)
	return out, out != nil
}

// PreviousNotEmptyBlock implements commitment.BlockMetaStore.
func (v *CommitmentView) PreviousNotEmptyBlock(hash common.Hash) (common.Hash, bool) {
	return v.store.PreviousNotEmptyBlock(hash)
}

// BlockHeight implements commitment.ChainLookup.
func (v *CommitmentView) BlockHeight(hash common.Hash) (uint64, bool) {
	h, ok := v.store.BlockHeader(hash)
	return h.Height, ok
}

// BlockParent implements commitment.ChainLookup.
func (v *CommitmentView) BlockParent(hash common.Hash) (common.Hash, bool) {
	h, ok := v.store.BlockHeader(hash)
	return h.ParentHash, ok
}

// LastCommittedBatch returns the last batch committed as of hash.
func (s *Store) LastCommittedBatch(hash common.Hash) (common.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.lastCommittedBatch[hash]
	return h, ok
}

// SetLastCommittedBatch records the last batch committed as of hash.
func (s *Store) SetLastCommittedBatch(hash, batch common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCommittedBatch[hash] = batch
}

