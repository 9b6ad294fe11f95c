// Package costs implements the typed per-operation cost schedule and the
// two saturating gas counters every charge is offered to (spec.md §4.1,
// component C1). It is grounded on params/protocol_params.go's flat
// named-constant style and kvstore/gas.go's overflow-checked "fixed +
// per_unit*units" helper shape.
package costs

import "math"

// Schedule enumerates every cost this module charges. All fields are
// "fixed" tokens in gas units unless the name says otherwise; per-byte or
// per-page surcharges are named *PerByte / *PerPage and combined with a
// unit count by Charge.
type Schedule struct {
	// Instrumented instruction categories (spec §4.1: "each instrumented
	// instruction category"). Kept generic; a real build seeds this from
	// the already-instrumented module's cost table (non-goal: we do not
	// instrument code ourselves).
	InstructionCost map[string]uint64

	// Syscalls: fixed cost plus per-byte surcharge, keyed by syscall name.
	SyscallFixed  map[string]uint64
	SyscallPerByte map[string]uint64

	// Memory pages.
	MemoryPageLoad     uint64
	MemoryPageUpload   uint64
	MemoryGrow         uint64
	MemoryGrowPerPage  uint64
	ParachainReadPage  uint64 // heuristic surcharge, see spec §4.1

	// Lazy-page access (spec §4.3), split by origin (trap vs host-func).
	SignalReadCost          uint64
	SignalWriteCost         uint64
	SignalWriteAfterRead    uint64
	HostFuncReadCost        uint64
	HostFuncWriteCost       uint64
	HostFuncWriteAfterRead  uint64
	LoadPageStorageData     uint64 // per GearPage requiring a storage load

	// Holding rents, charged per block held.
	WaitlistRentPerBlock    uint64
	DispatchStashRentPerBlock uint64
	ReservationRentPerBlock uint64
	MailboxRentPerBlock     uint64

	// Module instantiation.
	InstantiationPerByte    uint64
	InstantiationPerSection uint64

	// Database.
	DBReadFixed  uint64
	DBReadPerByte  uint64
	DBWriteFixed uint64
	DBWritePerByte uint64

	// Code instrumentation (non-goal to perform, but the charge still
	// exists for code we load that was instrumented upstream).
	InstrumentationBase    uint64
	InstrumentationPerByte uint64

	// Per-interval cost of loading a program's allocation set.
	LoadAllocationsPerInterval uint64

	// Fixed cost of one message-processing attempt (spec §4.6 step 2c).
	MessageProcessingFixed uint64

	// Fixed cost of a reply produced for an exited/terminated destination.
	ErrorReplyFixed uint64
}

// DefaultSchedule returns a schedule with conservative, internally
// consistent defaults. Production deployments load their own numbers from
// chain configuration; this is the shape, not chain-specific tuning.
func DefaultSchedule() *Schedule {
	return &Schedule{
		InstructionCost: map[string]uint64{},
		SyscallFixed: map[string]uint64{
			"alloc": 2000, "free": 1000, "free_range": 1200,
			"gr_message_id": 300, "gr_program_id": 300, "gr_source": 300,
			"gr_value": 300, "gr_value_available": 300, "gr_size": 200,
			"gr_read": 500, "gr_gas_available": 300, "gr_env_vars": 400,
			"gr_block_height": 200, "gr_block_timestamp": 200, "gr_random": 800,
			"gr_send": 6000, "gr_send_wgas": 6200, "gr_send_init": 1500,
			"gr_send_push": 800, "gr_send_commit": 5000, "gr_send_commit_wgas": 5200,
			"gr_send_input": 6000, "gr_send_input_wgas": 6200, "gr_send_push_input": 800,
			"gr_reservation_send": 6000, "gr_reservation_send_commit": 5000,
			"gr_reply": 6000, "gr_reply_wgas": 6200, "gr_reply_push": 800,
			"gr_reply_commit": 5000, "gr_reply_commit_wgas": 5200,
			"gr_reply_to": 300, "gr_reply_code": 300, "gr_signal_code": 300, "gr_signal_from": 300,
			"gr_reserve_gas": 2500, "gr_unreserve_gas": 2500,
			"gr_wait": 2000, "gr_wait_for": 2000, "gr_wait_up_to": 2000,
			"gr_wake": 1500, "gr_exit": 3000, "gr_leave": 1000,
			"gr_create_program": 8000, "gr_create_program_wgas": 8200,
		},
		SyscallPerByte: map[string]uint64{
			"gr_send": 10, "gr_send_wgas": 10, "gr_send_push": 10,
			"gr_send_input": 10, "gr_send_push_input": 10,
			"gr_reservation_send": 10, "gr_reply": 10, "gr_reply_push": 10,
			"gr_read": 6,
		},
		MemoryPageLoad:    3000,
		MemoryPageUpload:  3000,
		MemoryGrow:        1000,
		MemoryGrowPerPage: 500,
		ParachainReadPage: 200,

		SignalReadCost:         2500,
		SignalWriteCost:        3000,
		SignalWriteAfterRead:   1500,
		HostFuncReadCost:       2800,
		HostFuncWriteCost:      3300,
		HostFuncWriteAfterRead: 1700,
		LoadPageStorageData:    5000,

		WaitlistRentPerBlock:      100,
		DispatchStashRentPerBlock: 100,
		ReservationRentPerBlock:   50,
		MailboxRentPerBlock:       100,

		InstantiationPerByte:    10,
		InstantiationPerSection: 500,

		DBReadFixed:    800,
		DBReadPerByte:  4,
		DBWriteFixed:   1200,
		DBWritePerByte: 6,

		InstrumentationBase:    5000,
		InstrumentationPerByte: 3,

		LoadAllocationsPerInterval: 600,

		MessageProcessingFixed: 1000,
		ErrorReplyFixed:        500,
	}
}

// Charge computes fixed + perUnit*units, saturating at math.MaxUint64
// instead of overflowing (mirrors kvstore.EstimatePutPayloadGas's
// overflow-checked arithmetic).
func Charge(fixed, perUnit, units uint64) uint64 {
	if perUnit != 0 && units > (math.MaxUint64-fixed)/perUnit {
		return math.MaxUint64
	}
	return fixed + perUnit*units
}

// SyscallCost returns the fixed+per-byte cost of invoking name with an
// argument/payload of size bytes. Unknown syscalls cost 0 fixed (the
// syscall layer itself rejects unknown names before charging).
func (s *Schedule) SyscallCost(name string, size uint64) uint64 {
	return Charge(s.SyscallFixed[name], s.SyscallPerByte[name], size)
}

// InstantiationCost returns the cost of instantiating a module given the
// total code size and the number of top-level sections (spec §4.5 step 1).
func (s *Schedule) InstantiationCost(codeSize uint64, sections uint64) uint64 {
	return Charge(0, s.InstantiationPerByte, codeSize) + Charge(0, s.InstantiationPerSection, sections)
}

// InstrumentationCost returns the cost of instrumenting codeSize bytes of
// original code (spec §6: instrumentation is delegated, but its cost is
// still charged against gas when this module requests it).
func (s *Schedule) InstrumentationCost(codeSize uint64) uint64 {
	return Charge(s.InstrumentationBase, s.InstrumentationPerByte, codeSize)
}
