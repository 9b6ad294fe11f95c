package memaccess

import (
	"bytes"
	"testing"

	"github.com/gear-tech/gear-sub008/costs"
)

type fakeMemory struct {
	buf          []byte
	readAttempts int
}

func newFakeMemory(size int) *fakeMemory { return &fakeMemory{buf: make([]byte, size)} }

func (f *fakeMemory) Size() uint32 { return uint32(len(f.buf)) }

func (f *fakeMemory) ReadInto(ptr uint32, dst []byte) error {
	f.readAttempts++
	if uint64(ptr)+uint64(len(dst)) > uint64(len(f.buf)) {
		return ErrOutOfBounds
	}
	copy(dst, f.buf[ptr:])
	return nil
}

func (f *fakeMemory) Write(ptr uint32, data []byte) error {
	if uint64(ptr)+uint64(len(data)) > uint64(len(f.buf)) {
		return ErrOutOfBounds
	}
	copy(f.buf[ptr:], data)
	return nil
}

// S1: memory-batch read, success.
func TestBatchReadSuccess(t *testing.T) {
	mem := newFakeMemory(64)
	for i := 0; i < 10; i++ {
		mem.buf[i] = 5
	}
	gas := costs.NewGasCounter(1_000_000)
	m := NewManager(costs.DefaultSchedule(), mem.Size())
	h := m.RegisterRead(0, 10)

	if err := m.PreProcess(gas, 1, 0); err != nil {
		t.Fatalf("pre-process failed: %v", err)
	}
	if m.Pending() {
		t.Fatalf("buffers should be empty after successful pre-process")
	}
	data, err := m.Read(mem, h)
	if err != nil {
		t.Fatal(err)
	}
	want := bytes.Repeat([]byte{5}, 10)
	if !bytes.Equal(data, want) {
		t.Fatalf("unexpected data: %v", data)
	}
	if mem.readAttempts != 1 {
		t.Fatalf("expected exactly one memory read attempt, got %d", mem.readAttempts)
	}
}

// S2 + testable property 3: zero-size reads are free.
func TestZeroSizeReadIsFree(t *testing.T) {
	mem := newFakeMemory(64)
	gas := costs.NewGasCounter(1_000_000)
	m := NewManager(costs.DefaultSchedule(), mem.Size())
	h := m.RegisterRead(0, 0)

	if m.Pending() {
		t.Fatalf("zero-size read must not buffer an intent")
	}
	if err := m.PreProcess(gas, 1, 0); err != nil {
		t.Fatal(err)
	}
	if gas.Burned() != 0 {
		t.Fatalf("zero-size read must not charge gas, burned=%d", gas.Burned())
	}
	data, err := m.Read(mem, h)
	if err != nil || data != nil {
		t.Fatalf("expected empty result, got data=%v err=%v", data, err)
	}
	if mem.readAttempts != 0 {
		t.Fatalf("expected zero memory read attempts, got %d", mem.readAttempts)
	}
}

func TestPreProcessFailureLeavesBuffersIntact(t *testing.T) {
	mem := newFakeMemory(64)
	gas := costs.NewGasCounter(1) // not enough for any real charge
	m := NewManager(costs.DefaultSchedule(), mem.Size())
	m.RegisterRead(0, 10)

	err := m.PreProcess(gas, 100, 0)
	if err == nil {
		t.Fatalf("expected charge failure")
	}
	if !m.Pending() {
		t.Fatalf("failed pre-process must leave intents buffered")
	}
	if gas.Burned() != 0 {
		t.Fatalf("failed pre-process must not charge gas, burned=%d", gas.Burned())
	}
}

func TestWriteSizeMismatchPanics(t *testing.T) {
	mem := newFakeMemory(64)
	gas := costs.NewGasCounter(1_000_000)
	m := NewManager(costs.DefaultSchedule(), mem.Size())
	h := m.RegisterWrite(0, 10)
	if err := m.PreProcess(gas, 1, 0); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on size mismatch")
		}
	}()
	_ = m.Write(mem, h, []byte{1, 2, 3})
}
