// Package executor implements the execution driver (spec.md §4.5,
// component C5): it loads instrumented code, allocates memory, runs one
// dispatch inside a sandbox, and collects the resulting journal.
//
// Per spec.md §9's "Global mutable state" design note, the sandbox backend
// is modeled as a single lifecycle-managed capability (Runtime) rather
// than ambient global state; this package never reaches for a package-level
// WASM engine.
package executor

import (
	"errors"

	"github.com/gear-tech/gear-sub008/costs"
	"github.com/gear-tech/gear-sub008/gastree"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/lazypage"
	"github.com/gear-tech/gear-sub008/log"
	"github.com/gear-tech/gear-sub008/memaccess"
)

var logger = log.Root().New("module", "executor")

// TerminationReason is the sandbox's verdict for one dispatch
// (spec.md §4.5 step 5).
type TerminationReason uint8

const (
	TerminationSuccess TerminationReason = iota
	TerminationWait
	TerminationExit
	TerminationTrap
	TerminationGasAllowanceExceeded
)

// Outcome is the result of invoking the guest entry point once.
type Outcome struct {
	Reason       TerminationReason
	WaitDuration *uint32
	WaitedType   journal.WaitedType
	Heir         [32]byte
	TrapReason   string
}

// CodeSections describes the already-instrumented module's size profile,
// used only to compute the instantiation charge (spec.md §4.5 step 1); the
// bytes themselves are opaque to this package (non-goal: instrumentation
// and instruction-level cost tables belong to an upstream compiler).
type CodeSections struct {
	TotalBytes uint64
	Count      uint64
}

// Runtime is the sandbox capability this driver drives. A conforming
// implementation resolves imports to the syscall layer (package syscall)
// and reports back a TerminationReason; this package never talks to WASM
// directly (spec.md §1 non-goal: WASM instruction-level execution itself).
type Runtime interface {
	// Instantiate builds one instance bound to entryPoint and memSize
	// bytes of linear memory, wiring lazypage and syscall dispatch.
	Instantiate(entryPoint string, memSizeBytes uint32, pages *lazypage.Handler, mem memaccess.Memory) error
	// Run executes the instantiated module to completion or trap/wait.
	Run() (Outcome, error)
}

// Input bundles everything the driver needs for one dispatch
// (spec.md §4.5 "Driver input").
type Input struct {
	Dispatch      journal.StoredDispatch
	Program       [32]byte
	MemSizeBytes  uint32
	Gas           *costs.GasCounter
	Allowance     *costs.GasAllowanceCounter
	GasReserver   *gastree.Tree
	Schedule      *costs.Schedule
	CodeSections  CodeSections
	Runtime       Runtime
	PageStorage   lazypage.StorageLoader
	Materialised  []lazypage.GearPage
	Mem           memaccess.Memory
}

var ErrNoExecution = errors.New("executor: instantiation pre-charge failed")

// Run executes one dispatch per spec.md §4.5's seven steps and returns the
// outcome plus its journal. The journal opens with MessageDispatched; for a
// terminated dispatch it ends with GasBurned followed by MessageConsumed,
// whose Outcome carries the DispatchOutcome classification of step 5.
func Run(in Input) (Outcome, []journal.Note, error) {
	// Step 1: pre-charge instantiation cost.
	instCost := in.Schedule.InstantiationCost(in.CodeSections.TotalBytes, in.CodeSections.Count)
	if err := costs.ChargeBoth(in.Gas, in.Allowance, instCost); err != nil {
		logger.Debug("no execution: instantiation pre-charge failed", "program", in.Program, "cost", instCost)
		return Outcome{Reason: TerminationTrap, TrapReason: "GasLimitExceeded"}, nil, ErrNoExecution
	}

	entry := entryPointFor(in.Dispatch.Message.Kind)

	// Step 3: install the lazy-page handler.
	pages := lazypage.NewHandler(in.Schedule, in.PageStorage, in.Materialised)

	// Step 2 + 4: build the instance and invoke the entry point.
	if err := in.Runtime.Instantiate(entry, in.MemSizeBytes, pages, in.Mem); err != nil {
		return Outcome{Reason: TerminationTrap, TrapReason: err.Error()}, nil, nil
	}
	outcome, runErr := in.Runtime.Run()
	if runErr != nil && outcome.Reason != TerminationGasAllowanceExceeded {
		outcome.Reason = TerminationTrap
		outcome.TrapReason = runErr.Error()
	}

	// Step 6: drain dirty pages.
	final := pages.ReleaseAll()
	notes := []journal.Note{{Kind: journal.MessageDispatched, Message: in.Dispatch.Message.Id, Program: in.Program}}
	for p, state := range final {
		if state == lazypage.WriteAccessed {
			notes = append(notes, journal.Note{Kind: journal.UpdatePage, Program: in.Program, Page: p})
		}
	}

	// Step 7: fold the termination reason into the journal. MessageConsumed
	// is only produced when the dispatch has actually terminated — a Wait
	// outcome leaves the message alive in the waitlist, so it must not be
	// consumed yet (spec.md §4.5 ordering guarantee applies to terminated
	// dispatches only).
	switch outcome.Reason {
	case TerminationWait:
		notes = append(notes, journal.Note{
			Kind: journal.WaitDispatch, Message: in.Dispatch.Message.Id, Program: in.Program,
			WaitDuration: outcome.WaitDuration, WaitedType: outcome.WaitedType,
		})
		return outcome, notes, nil
	case TerminationExit:
		notes = append(notes, journal.Note{Kind: journal.ExitDispatch, Program: in.Program, Heir: outcome.Heir})
	}

	notes = append(notes,
		journal.Note{Kind: journal.GasBurned, Message: in.Dispatch.Message.Id, Program: in.Program, GasAmount: in.Gas.Burned()},
		journal.Note{Kind: journal.MessageConsumed, Message: in.Dispatch.Message.Id, Program: in.Program, Outcome: terminationToOutcome(outcome.Reason)},
	)

	return outcome, notes, nil
}

func terminationToOutcome(r TerminationReason) journal.DispatchOutcome {
	switch r {
	case TerminationSuccess:
		return journal.OutcomeSuccess
	case TerminationExit:
		return journal.OutcomeExit
	case TerminationGasAllowanceExceeded:
		return journal.OutcomeGasAllowanceExceeded
	default:
		return journal.OutcomeTrap
	}
}

func entryPointFor(kind journal.MessageKind) string {
	switch kind {
	case journal.KindInit:
		return "init"
	case journal.KindHandle:
		return "handle"
	case journal.KindReply:
		return "handle_reply"
	case journal.KindSignal:
		return "handle_signal"
	default:
		return "handle"
	}
}
