package scheduler

import (
	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/costs"
	"github.com/gear-tech/gear-sub008/executor"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/lazypage"
)

// CodeProvider resolves a program's instrumented code size profile and a
// fresh Runtime bound to it, so DriverDispatcher never needs to know how
// the sandbox backend is implemented (spec.md §1 non-goal: the WASM
// instruction-level interpreter itself).
type CodeProvider interface {
	CodeSections(program common.ActorId) (executor.CodeSections, error)
	NewRuntime(program common.ActorId) (executor.Runtime, error)
	MemorySize(program common.ActorId) uint32
}

// PageLoaders resolves a per-program StorageLoader so each execution pages
// in only its own program's GearPages (spec.md §4.3), keyed by memory
// infix the way package storage's Store.PageLoader scopes itself.
type PageLoaders interface {
	PageLoader(program common.ActorId) lazypage.StorageLoader
}

// DriverDispatcher adapts the execution driver (package executor) to the
// scheduler's Dispatcher interface, the way the teacher's ApplyMsgFn
// callback is injected into ExecuteParallel rather than hard-wired
// (core/parallel/executor.go): the scheduler's block loop stays agnostic
// to how a dispatch actually runs.
type DriverDispatcher struct {
	Code     CodeProvider
	Storage  PageLoaders
	Schedule *costs.Schedule
}

// Dispatch runs one dispatch through the execution driver and returns its
// journal (spec.md §4.6 step 2d).
func (d *DriverDispatcher) Dispatch(sd journal.StoredDispatch, allowance *costs.GasAllowanceCounter) ([]journal.Note, error) {
	program := sd.Message.Destination
	sections, err := d.Code.CodeSections(program)
	if err != nil {
		return nil, err
	}
	rt, err := d.Code.NewRuntime(program)
	if err != nil {
		return nil, err
	}

	limit := d.Schedule.MessageProcessingFixed * 1000 // a generous default when unspecified
	if sd.Message.GasLimit != nil {
		limit = *sd.Message.GasLimit
	}
	gas := costs.NewGasCounter(limit)

	in := executor.Input{
		Dispatch:     sd,
		Program:      program,
		MemSizeBytes: d.Code.MemorySize(program),
		Gas:          gas,
		Allowance:    allowance,
		Schedule:     d.Schedule,
		CodeSections: sections,
		Runtime:      rt,
		PageStorage:  d.Storage.PageLoader(program),
	}
	_, notes, err := executor.Run(in)
	return notes, err
}
