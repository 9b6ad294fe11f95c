// Package syscall implements the host functions a guest program may call
// (spec.md §4.4, component C4). It is grounded on sysaction's
// Context/Handler/Registry dispatch shape (sysaction/executor.go): a
// Context carries everything one call needs, Handlers declare which
// syscalls they own, and a Registry routes a call by name to its owner.
//
// Syscalls that carry a guest buffer argument (gr_read's output pointer,
// gr_send/gr_send_push/gr_reservation_send/gr_reply/gr_reply_push/
// gr_create_program's payload and salt pointers) follow the protocol spec.md §4.4 lays out: register the
// memory intent, pre-charge, read or write through the memory access
// manager, compute (+ per-byte surcharge), emit journal notes, return. See
// Context.readGuest/writeGuest, the two call sites that exercise
// memaccess.Manager on the message-processing path rather than only from
// its own package's tests. Syscalls with no guest buffer (the self-
// inspection getters other than gr_read, gr_wait*, gr_reserve_gas, ...)
// have nothing for the memory manager to mediate and skip it entirely.
// Recoverable errors are written into an out-parameter as a typed code;
// unrecoverable ones are returned as a TrapError the sandbox must
// translate into a guest trap.
package syscall

import (
	"errors"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/costs"
	"github.com/gear-tech/gear-sub008/gastree"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/memaccess"
)

// TrapReason is one of the unrecoverable trap explanations (spec.md §4.4, §7).
type TrapReason uint8

const (
	TrapGasLimitExceeded TrapReason = iota
	TrapForbiddenFunction
	TrapProgramAllocOutOfBounds
	TrapStackLimitExceeded
	TrapPanic
	TrapUnrecoverableExt
	TrapUnknown
)

// TrapError aborts the whole execution (spec.md §4.4 step: "unrecoverable
// errors trap").
type TrapError struct {
	Reason TrapReason
	Detail string
}

func (e *TrapError) Error() string {
	if e.Detail != "" {
		return "syscall: trap: " + e.Detail
	}
	return "syscall: trap"
}

// RecoverableError is a user-visible error code written into a syscall's
// out-parameter rather than aborting execution (spec.md §4.4).
type RecoverableError uint32

const (
	ErrNone RecoverableError = iota
	ErrLimitExceeded
	ErrMemoryAccess
	ErrMaxMessageSizeExceeded
	ErrValueTransfer
	ErrReplyAlreadySent
	ErrUnsupportedMessageKind
	ErrReservationNotFound
	ErrTooManyOutgoingBuilders
	ErrNoSuchBuilder
	ErrOutOfAllowedIterations
)

var ErrForbiddenFunction = errors.New("syscall: forbidden function in this context")

// Context carries everything one syscall invocation needs: it is the
// per-dispatch analogue of sysaction.Context.
type Context struct {
	Schedule  *costs.Schedule
	Gas       *costs.GasCounter
	Allowance *costs.GasAllowanceCounter
	GasTree   *gastree.Tree
	Memory    *memaccess.Manager
	Mem       memaccess.Memory

	Dispatch journal.StoredDispatch
	Program  common.ActorId
	Current  journal.Message // the message being handled

	BlockHeight    uint64
	BlockTimestamp uint64
	RandomSeed     func(salt []byte) common.Hash

	Notes []journal.Note // accumulated journal notes for this execution

	replyCommitted bool
}

// Emit appends a journal note produced during this execution.
func (c *Context) Emit(n journal.Note) { c.Notes = append(c.Notes, n) }

// readGuest reads length bytes of guest memory starting at ptr through the
// memory access manager (spec.md §4.2): register the intent, pre-process
// (which validates bounds and clears the buffer atomically), then perform
// the transfer. The per-byte gas for the syscall itself is charged by the
// caller via chargeFixed; readGuest's own pre-process charge is zero since
// that cost is already accounted for there — readGuest exists to run the
// register/pre-process/read protocol and its bounds check, not to charge
// twice.
func (c *Context) readGuest(ptr, length uint32) ([]byte, error) {
	h := c.Memory.RegisterRead(ptr, length)
	if err := c.Memory.PreProcess(c.Gas, 0, 0); err != nil {
		return nil, err
	}
	return c.Memory.Read(c.Mem, h)
}

// writeGuest writes data into guest memory starting at ptr, same protocol
// as readGuest.
func (c *Context) writeGuest(ptr uint32, data []byte) error {
	h := c.Memory.RegisterWrite(ptr, uint32(len(data)))
	if err := c.Memory.PreProcess(c.Gas, 0, 0); err != nil {
		return err
	}
	return c.Memory.Write(c.Mem, h, data)
}

// chargeFixed charges a syscall's fixed+per-byte cost from the schedule
// against both counters in order (spec.md §4.1).
func (c *Context) chargeFixed(name string, size uint64) error {
	cost := c.Schedule.SyscallCost(name, size)
	return costs.ChargeBoth(c.Gas, c.Allowance, cost)
}

// Handler is implemented by each syscall family (memory, messaging,
// reply, reservations, control, program-creation, self-inspection).
type Handler interface {
	CanHandle(name string) bool
	// Handle executes the named syscall. Recoverable failures are
	// returned via RecoverableError through the handler's own return
	// value conventions (each family documents its own signature because
	// syscalls differ in shape, mirroring sysaction's per-action payloads).
}

// Registry routes syscalls to their owning implementation by name. Kept
// even though this package's Go API calls the family methods directly,
// because the sandbox import table is built by name lookup, same as
// sysaction.DefaultRegistry routes by ActionKind.
type Registry struct {
	families []Handler
}

var DefaultRegistry = &Registry{}

func (r *Registry) Register(h Handler) { r.families = append(r.families, h) }

func (r *Registry) Lookup(name string) (Handler, bool) {
	for _, h := range r.families {
		if h.CanHandle(name) {
			return h, true
		}
	}
	return nil, false
}

// Instrumentable lists every syscall name the host MUST support (spec.md
// §6: "The host MUST support every name returned by instrumentable()").
func Instrumentable() []string {
	return []string{
		"alloc", "free", "free_range",
		"gr_message_id", "gr_program_id", "gr_source", "gr_value",
		"gr_value_available", "gr_size", "gr_read", "gr_gas_available",
		"gr_env_vars", "gr_block_height", "gr_block_timestamp", "gr_random",
		"gr_send", "gr_send_wgas", "gr_send_init", "gr_send_push",
		"gr_send_commit", "gr_send_commit_wgas", "gr_send_input",
		"gr_send_input_wgas", "gr_send_push_input",
		"gr_reservation_send", "gr_reservation_send_commit",
		"gr_reply", "gr_reply_wgas", "gr_reply_push", "gr_reply_commit",
		"gr_reply_commit_wgas", "gr_reply_to", "gr_reply_code",
		"gr_signal_code", "gr_signal_from",
		"gr_reserve_gas", "gr_unreserve_gas",
		"gr_wait", "gr_wait_for", "gr_wait_up_to", "gr_wake",
		"gr_exit", "gr_leave",
		"gr_create_program", "gr_create_program_wgas",
	}
}
