package lazypage

import (
	"testing"

	"github.com/gear-tech/gear-sub008/costs"
)

type memStorage struct {
	data map[GearPage][]byte
}

func (m *memStorage) LoadGearPage(p GearPage) ([]byte, bool, error) {
	d, ok := m.data[p]
	return d, ok, nil
}

func TestAbsentReadThenWriteAfterRead(t *testing.T) {
	schedule := costs.DefaultSchedule()
	storage := &memStorage{data: map[GearPage][]byte{}}
	h := NewHandler(schedule, storage, nil)
	gas := costs.NewGasCounter(10_000_000)

	if _, err := h.Access(0, Read, FromTrap, gas); err != nil {
		t.Fatal(err)
	}
	readCharge := gas.Burned()
	wantFirst := costs.Charge(schedule.SignalReadCost, schedule.LoadPageStorageData, GearPagesPerWasmPage)
	if readCharge != wantFirst {
		t.Fatalf("unexpected first charge: got %d want %d", readCharge, wantFirst)
	}

	if _, err := h.Access(0, Write, FromTrap, gas); err != nil {
		t.Fatal(err)
	}
	secondCharge := gas.Burned() - readCharge
	if secondCharge != schedule.SignalWriteAfterRead {
		t.Fatalf("unexpected write-after-read charge: got %d want %d", secondCharge, schedule.SignalWriteAfterRead)
	}

	dirty := h.DirtyPages()
	if len(dirty) != 1 || dirty[0] != 0 {
		t.Fatalf("expected page 0 dirty, got %v", dirty)
	}
}

func TestMonotonicTransitionPrefix(t *testing.T) {
	schedule := costs.DefaultSchedule()
	storage := &memStorage{data: map[GearPage][]byte{}}
	h := NewHandler(schedule, storage, nil)
	gas := costs.NewGasCounter(10_000_000)

	h.Access(1, Write, FromHostFunc, gas)
	if got := h.stateOf(1); got != WriteAccessed {
		t.Fatalf("expected WriteAccessed, got %v", got)
	}

	before := gas.Burned()
	h.Access(1, Write, FromHostFunc, gas)
	if gas.Burned() != before {
		t.Fatalf("repeated write on already-WriteAccessed page must not charge again")
	}
}

func TestReleaseAllDistinguishesReadAndWrite(t *testing.T) {
	schedule := costs.DefaultSchedule()
	storage := &memStorage{data: map[GearPage][]byte{}}
	h := NewHandler(schedule, storage, nil)
	gas := costs.NewGasCounter(10_000_000)

	h.Access(0, Read, FromTrap, gas)
	h.Access(1, Write, FromTrap, gas)

	final := h.ReleaseAll()
	if final[0] != ReadAccessed || final[1] != WriteAccessed {
		t.Fatalf("unexpected final states: %+v", final)
	}
}
