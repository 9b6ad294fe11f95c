// Package lazypage implements the lazy-page fault handler (spec.md §4.3,
// component C3): linear-memory pages are demand-paged, and each guest
// access to a not-yet-present page is resolved through a small state
// machine that charges the appropriate cost from the schedule before the
// page becomes readable/writable.
//
// Per spec.md §9's portability note, this implementation does not depend
// on OS page-fault signals: callers invoke Access explicitly from the
// syscall/host-function boundary (or from an explicit accessor wrapper at
// the sandbox import boundary), which is the portable realization the
// design notes call out as equivalent.
package lazypage

import (
	"errors"

	"github.com/gear-tech/gear-sub008/costs"
)

// State is a WasmPage's lazy-paging state (spec.md §4.3).
type State uint8

const (
	Absent State = iota
	ReadAccessed
	WriteAccessed
	Released
)

// AccessKind distinguishes a read access from a write access; each uses a
// distinct cost row (spec.md §4.3 table).
type AccessKind uint8

const (
	Read AccessKind = iota
	Write
)

// Origin distinguishes where the access was made from, selecting between
// the "signal_*" and "host_func_*" cost rows.
type Origin uint8

const (
	FromTrap Origin = iota
	FromHostFunc
)

var ErrGasLimitExceeded = errors.New("lazypage: gas limit exceeded")

// WasmPage is a 64 KiB linear-memory page (spec.md GLOSSARY).
type WasmPage uint32

// GearPage is a storage granule smaller than a WasmPage; a WasmPage covers
// an integral number of GearPages (spec.md §3).
type GearPage uint32

// GearPagesPerWasmPage is fixed by the relationship described in spec.md
// §3: WASM's 64 KiB page divided into Gear's 4 KiB storage granule.
const GearPagesPerWasmPage = 16

// GearPagesOf returns the GearPage range backing p.
func GearPagesOf(p WasmPage) []GearPage {
	out := make([]GearPage, GearPagesPerWasmPage)
	base := GearPage(p) * GearPagesPerWasmPage
	for i := range out {
		out[i] = base + GearPage(i)
	}
	return out
}

// StorageLoader loads a GearPage's persisted bytes. Returns ok=false if the
// page has no stored data yet (a fresh, all-zero page).
type StorageLoader interface {
	LoadGearPage(p GearPage) (data []byte, ok bool, err error)
}

// Handler tracks per-WasmPage state for one execution and charges C1 costs
// as pages transition (spec.md §4.3 transition table).
type Handler struct {
	schedule *costs.Schedule
	storage  StorageLoader

	state         map[WasmPage]State
	loadedGear    map[GearPage]struct{} // storage load issued once per gear page per execution
	materialised  map[GearPage]struct{} // already present in the instance, needs no load
}

// NewHandler creates a handler for one execution. materialisedGearPages
// lists GearPages already present in the instance (e.g. carried over from
// a prior access within the same execution) and therefore free of the
// "k" storage-load multiplier (spec.md §4.3: "k is the number of GearPages
// ... that require storage load").
func NewHandler(schedule *costs.Schedule, storage StorageLoader, materialisedGearPages []GearPage) *Handler {
	h := &Handler{
		schedule:     schedule,
		storage:      storage,
		state:        make(map[WasmPage]State),
		loadedGear:   make(map[GearPage]struct{}),
		materialised: make(map[GearPage]struct{}),
	}
	for _, gp := range materialisedGearPages {
		h.materialised[gp] = struct{}{}
	}
	return h
}

func (h *Handler) stateOf(p WasmPage) State {
	if s, ok := h.state[p]; ok {
		return s
	}
	return Absent
}

// pendingGearLoads returns the GearPages backing p that still require a
// storage load this execution (k in the cost formula).
func (h *Handler) pendingGearLoads(p WasmPage) []GearPage {
	var pending []GearPage
	for _, gp := range GearPagesOf(p) {
		if _, done := h.materialised[gp]; done {
			continue
		}
		if _, done := h.loadedGear[gp]; done {
			continue
		}
		pending = append(pending, gp)
	}
	return pending
}

// Access resolves a guest access to p, charging gas and advancing p's
// state per the transition table in spec.md §4.3. On success it returns
// the concatenated bytes of the GearPages this call loaded from storage;
// GearPages loaded by an earlier call or absent from storage add nothing.
func (h *Handler) Access(p WasmPage, kind AccessKind, origin Origin, gas *costs.GasCounter) ([]byte, error) {
	cur := h.stateOf(p)
	pending := h.pendingGearLoads(p)
	k := uint64(len(pending))

	var signalCost uint64
	switch {
	case cur == Absent && kind == Read:
		signalCost = h.originCost(origin, signalAbsentRead)
	case cur == Absent && kind == Write:
		signalCost = h.originCost(origin, signalAbsentWrite)
	case cur == ReadAccessed && kind == Write:
		signalCost = h.originCost(origin, signalWriteAfterRead)
		k = 0 // already materialised by the prior read
	case cur == WriteAccessed:
		// Already writable; no further transition or charge beyond the
		// storage-load portion if somehow still pending (should be zero).
		signalCost = 0
	default:
		signalCost = 0
	}

	total := costs.Charge(signalCost, h.schedule.LoadPageStorageData, k)
	if gas.ChargeIfEnough(total) == costs.NotEnough {
		return nil, ErrGasLimitExceeded
	}

	var out []byte
	for _, gp := range pending {
		data, ok, err := h.storage.LoadGearPage(gp)
		if err != nil {
			return nil, err
		}
		h.loadedGear[gp] = struct{}{}
		if ok {
			out = append(out, data...)
		} else {
			out = append(out, make([]byte, 0)...)
		}
	}

	switch {
	case cur == Absent && kind == Read:
		h.state[p] = ReadAccessed
	case cur == Absent && kind == Write:
		h.state[p] = WriteAccessed
	case cur == ReadAccessed && kind == Write:
		h.state[p] = WriteAccessed
	}
	return out, nil
}

type signalKind uint8

const (
	signalAbsentRead signalKind = iota
	signalAbsentWrite
	signalWriteAfterRead
)

func (h *Handler) originCost(origin Origin, kind signalKind) uint64 {
	if origin == FromTrap {
		switch kind {
		case signalAbsentRead:
			return h.schedule.SignalReadCost
		case signalAbsentWrite:
			return h.schedule.SignalWriteCost
		default:
			return h.schedule.SignalWriteAfterRead
		}
	}
	switch kind {
	case signalAbsentRead:
		return h.schedule.HostFuncReadCost
	case signalAbsentWrite:
		return h.schedule.HostFuncWriteCost
	default:
		return h.schedule.HostFuncWriteAfterRead
	}
}

// DirtyPages returns every WasmPage whose current state is WriteAccessed,
// i.e. the pages the execution driver must emit as UpdatePage journal
// notes. ReadAccessed pages are discarded, never returned here.
func (h *Handler) DirtyPages() []WasmPage {
	var out []WasmPage
	for p, s := range h.state {
		if s == WriteAccessed {
			out = append(out, p)
		}
	}
	return out
}

// ReleaseAll transitions every tracked page to Released at the end of an
// execution, returning the pre-release state of each so the caller can
// decide what to persist (spec.md §4.3: WriteAccessed pages are persisted,
// ReadAccessed pages are discarded).
func (h *Handler) ReleaseAll() map[WasmPage]State {
	final := make(map[WasmPage]State, len(h.state))
	for p, s := range h.state {
		final[p] = s
		h.state[p] = Released
	}
	return final
}
