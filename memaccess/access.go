// Package memaccess implements the memory access manager (spec.md §4.2,
// component C2): the sole mediator between syscall code and the sandbox's
// linear memory. Every syscall registers its reads and writes as intents,
// then pre-charges the sum of their costs atomically before any actual
// transfer happens — so a syscall either sees a consistent memory view and
// pays in full, or has no observable effect at all.
//
// Typed intents carry a decoder function in their Read handle rather than
// a phantom type parameter (spec.md §9 design note "Typed handles over
// phantom types"); ReadDecoded applies it at read time.
package memaccess

import (
	"errors"

	"github.com/gear-tech/gear-sub008/costs"
)

var (
	ErrOutOfBounds     = errors.New("memaccess: access out of memory bounds")
	ErrSizeMismatch    = errors.New("memaccess: write data size does not match handle size")
	ErrBuffersNotReady = errors.New("memaccess: read/write before pre_process_memory_accesses")
)

// Memory is the sandbox's linear memory, as seen by this package. A real
// backend wraps the WASM instance's exported memory; tests use a plain
// byte slice.
type Memory interface {
	Size() uint32
	ReadInto(ptr uint32, dst []byte) error
	Write(ptr uint32, data []byte) error
}

// Decoder decodes raw bytes read from memory. Attached to a Read handle by
// RegisterReadAs so a typed read can be validated at the point of use without a generic type
// parameter (this is Go; spec.md §9 explicitly anticipates this shape).
type Decoder func([]byte) error

// intent is one buffered read or write before pre-charging.
type intent struct {
	ptr  uint32
	size uint32
}

// Read is an opaque handle to a completed (post pre-charge) read.
type Read struct {
	ptr, size uint32
	decoder   Decoder
}

// Write is an opaque handle to a completed (post pre-charge) write slot.
type Write struct {
	ptr, size uint32
}

func (r Read) Size() uint32  { return r.size }
func (w Write) Size() uint32 { return w.size }

// Manager buffers intents for one syscall invocation and mediates their
// charging and execution.
type Manager struct {
	schedule *costs.Schedule
	memSize  uint32

	pendingReads  []intent
	pendingWrites []intent
	ready         bool // true once pre_process_memory_accesses has succeeded
}

// NewManager creates a manager bound to the given cost schedule and
// current memory size (in bytes).
func NewManager(schedule *costs.Schedule, memSizeBytes uint32) *Manager {
	return &Manager{schedule: schedule, memSize: memSizeBytes}
}

// RegisterRead enqueues a read intent and returns its handle. A size-0 read
// registers nothing and produces no buffer entry (spec.md §4.2: "typed
// reads with size = 0 are a no-op").
func (m *Manager) RegisterRead(ptr, size uint32) Read {
	if size == 0 {
		return Read{ptr: ptr, size: 0}
	}
	m.pendingReads = append(m.pendingReads, intent{ptr, size})
	return Read{ptr: ptr, size: size}
}

// RegisterWrite enqueues a write intent and returns its handle.
func (m *Manager) RegisterWrite(ptr, size uint32) Write {
	if size == 0 {
		return Write{ptr: ptr, size: 0}
	}
	m.pendingWrites = append(m.pendingWrites, intent{ptr, size})
	return Write{ptr: ptr, size: size}
}

// RegisterReadAs registers a typed read of exactly size bytes, attaching
// decoder for later use by ReadDecoded.
func (m *Manager) RegisterReadAs(ptr uint32, size uint32, decoder Decoder) Read {
	if size == 0 {
		return Read{ptr: ptr, size: 0, decoder: decoder}
	}
	m.pendingReads = append(m.pendingReads, intent{ptr, size})
	return Read{ptr: ptr, size: size, decoder: decoder}
}

// RegisterWriteAs registers a typed write of exactly size bytes.
func (m *Manager) RegisterWriteAs(ptr uint32, size uint32) Write {
	return m.RegisterWrite(ptr, size)
}

// RegisterReadDecoded registers a read of maxEncodedLen bytes for a type
// whose encoding may be shorter; callers trim/validate after decoding.
func (m *Manager) RegisterReadDecoded(ptr uint32, maxEncodedLen uint32, decoder Decoder) Read {
	return m.RegisterReadAs(ptr, maxEncodedLen, decoder)
}

func (m *Manager) totalBufferedBytes() uint64 {
	var total uint64
	for _, it := range m.pendingReads {
		total += uint64(it.size)
	}
	for _, it := range m.pendingWrites {
		total += uint64(it.size)
	}
	return total
}

func (m *Manager) validateBounds() error {
	for _, it := range m.pendingReads {
		if uint64(it.ptr)+uint64(it.size) > uint64(m.memSize) {
			return ErrOutOfBounds
		}
	}
	for _, it := range m.pendingWrites {
		if uint64(it.ptr)+uint64(it.size) > uint64(m.memSize) {
			return ErrOutOfBounds
		}
	}
	return nil
}

// PreProcess atomically charges the sum of costs of all buffered intents
// (reads and writes together) against gas, validates every interval
// against current memory bounds, and on success clears both buffers so
// subsequent Read/Write calls may proceed (spec.md §4.2).
//
// On failure the intents are left exactly as registered and gas is
// untouched (spec.md §8 property 2: memory-access atomicity).
func (m *Manager) PreProcess(gas *costs.GasCounter, perByteCost uint64, fixedCost uint64) error {
	if err := m.validateBounds(); err != nil {
		return err
	}
	total := costs.Charge(fixedCost, perByteCost, m.totalBufferedBytes())
	if gas.ChargeIfEnough(total) == costs.NotEnough {
		return &costs.ChargeError{GasLimitExceeded: true}
	}
	m.pendingReads = nil
	m.pendingWrites = nil
	m.ready = true
	return nil
}

// Read performs the actual transfer for a previously pre-charged handle. A
// zero-size read returns an empty buffer and never touches memory (spec.md
// §4.2, and the testable property "zero-size reads are free").
func (m *Manager) Read(mem Memory, h Read) ([]byte, error) {
	if h.size == 0 {
		return nil, nil
	}
	if !m.ready {
		return nil, ErrBuffersNotReady
	}
	buf := make([]byte, h.size)
	if err := mem.ReadInto(h.ptr, buf); err != nil {
		return nil, ErrOutOfBounds
	}
	return buf, nil
}

// ReadDecoded reads h and decodes it with its registered decoder.
func (m *Manager) ReadDecoded(mem Memory, h Read) ([]byte, error) {
	data, err := m.Read(mem, h)
	if err != nil {
		return nil, err
	}
	if h.decoder != nil {
		if err := h.decoder(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Write performs the actual transfer for a previously pre-charged handle.
// data.len() must equal h.Size(); a mismatch is a caller bug, not a user
// error (spec.md §4.2).
func (m *Manager) Write(mem Memory, h Write, data []byte) error {
	if uint32(len(data)) != h.size {
		panic(ErrSizeMismatch)
	}
	if h.size == 0 {
		return nil
	}
	if !m.ready {
		return ErrBuffersNotReady
	}
	if err := mem.Write(h.ptr, data); err != nil {
		return ErrOutOfBounds
	}
	return nil
}

// Pending reports whether there are unprocessed intents, used by this
// package's tests to assert that pre-processing consumed them.
func (m *Manager) Pending() bool {
	return len(m.pendingReads) > 0 || len(m.pendingWrites) > 0
}
