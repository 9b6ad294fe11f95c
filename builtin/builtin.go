// Package builtin implements the pre-registered host-implemented actors
// (spec.md §4.11, component C12): actors identified by an 8-byte BuiltinId
// that are invoked with the same input as the WASM execution driver and
// produce the same kind of journal.
//
// The registry shape is grounded on the teacher's sysaction.Registry
// (sysaction/executor.go): a Register/CanHandle/Handle dispatch list
// rather than a map, since a handler may claim a contiguous BuiltinId
// range (e.g. a precompile family) rather than a single id.
package builtin

import (
	"errors"
	"fmt"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/log"
)

var logger = log.Root().New("module", "builtin")

// Id is the 8-byte identifier a builtin actor is invoked under (spec.md
// §4.11: "pre-registered actors identified by 8-byte BuiltinIds").
type Id [8]byte

func (id Id) String() string { return fmt.Sprintf("%x", id[:]) }

// Input bundles a builtin invocation's arguments (spec.md §4.11:
// "Invocation contract: same input as WASM executor (a StoredDispatch plus
// gas_limit)").
type Input struct {
	Dispatch journal.StoredDispatch
	Program  common.ActorId
	GasLimit uint64
}

// Handler is implemented by one builtin actor family (spec.md §4.11).
// CanHandle lets one Handler cover a range of ids (e.g. a precompile
// table), mirroring sysaction.Handler.CanHandle's action-kind predicate.
type Handler interface {
	CanHandle(id Id) bool
	Handle(in Input) ([]journal.Note, error)
}

var ErrUnknownBuiltin = errors.New("builtin: no registered handler for this actor id")

// Registry holds the registered builtin handlers, tried in registration
// order (spec.md §4.11).
type Registry struct {
	handlers []Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds h to the registry.
func (r *Registry) Register(h Handler) { r.handlers = append(r.handlers, h) }

// Invoke dispatches in to the first registered handler claiming
// in.Program's builtin id, and enforces the journal-ordering obligation
// spec.md §4.11 places on every builtin: "the GasBurned note precedes the
// SendDispatch for the reply and the MessageDispatched/MessageConsumed
// pair closes the journal."
func (r *Registry) Invoke(id Id, in Input) ([]journal.Note, error) {
	for _, h := range r.handlers {
		if !h.CanHandle(id) {
			continue
		}
		notes, err := h.Handle(in)
		if err != nil {
			logger.Error("builtin invocation failed", "id", id, "err", err)
			return nil, err
		}
		if err := validateJournalShape(notes); err != nil {
			return nil, fmt.Errorf("builtin: handler for %s produced an invalid journal: %w", id, err)
		}
		return notes, nil
	}
	return nil, ErrUnknownBuiltin
}

// validateJournalShape checks spec.md §4.11's ordering obligation: the
// journal opens with MessageDispatched, every GasBurned for a message
// precedes any SendDispatch produced as that message's reply, and
// MessageConsumed is the final note.
func validateJournalShape(notes []journal.Note) error {
	if len(notes) == 0 {
		return errors.New("empty journal")
	}
	if notes[0].Kind != journal.MessageDispatched {
		return errors.New("journal must open with MessageDispatched")
	}
	if notes[len(notes)-1].Kind != journal.MessageConsumed {
		return errors.New("journal must close with MessageConsumed")
	}
	gasBurned := false
	for _, n := range notes {
		switch n.Kind {
		case journal.GasBurned:
			gasBurned = true
		case journal.SendDispatch:
			if !gasBurned {
				return errors.New("SendDispatch (reply) must be preceded by GasBurned")
			}
		}
	}
	if !journal.ValidateOrdering(notes) {
		return errors.New("MessageConsumed must trail every other note for its message")
	}
	return nil
}
