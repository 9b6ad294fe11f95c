package builtin

import (
	"testing"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/journal"
)

func TestRegistryInvokesEcho(t *testing.T) {
	r := NewRegistry()
	r.Register(Echo{})

	in := Input{
		Dispatch: journal.StoredDispatch{Message: journal.Message{
			Id: common.Hash{1}, Source: common.Hash{2}, Destination: common.Hash{3},
		}},
		Program: common.Hash{3},
	}
	notes, err := r.Invoke(EchoId, in)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(notes) != 4 {
		t.Fatalf("expected 4 notes, got %d", len(notes))
	}
	if notes[0].Kind != journal.MessageDispatched {
		t.Fatalf("expected journal to open with MessageDispatched, got %v", notes[0].Kind)
	}
	if notes[len(notes)-1].Kind != journal.MessageConsumed {
		t.Fatalf("expected journal to close with MessageConsumed, got %v", notes[len(notes)-1].Kind)
	}
}

func TestRegistryRejectsUnknownId(t *testing.T) {
	r := NewRegistry()
	r.Register(Echo{})
	_, err := r.Invoke(Id{'x'}, Input{})
	if err != ErrUnknownBuiltin {
		t.Fatalf("expected ErrUnknownBuiltin, got %v", err)
	}
}

func TestValidateJournalShapeRejectsMissingGasBurned(t *testing.T) {
	notes := []journal.Note{
		{Kind: journal.MessageDispatched, Message: common.Hash{1}},
		{Kind: journal.SendDispatch, Message: common.Hash{1}},
		{Kind: journal.MessageConsumed, Message: common.Hash{1}},
	}
	if err := validateJournalShape(notes); err == nil {
		t.Fatalf("expected an error when SendDispatch precedes any GasBurned")
	}
}

func TestValidateJournalShapeRejectsConsumedNotLast(t *testing.T) {
	notes := []journal.Note{
		{Kind: journal.MessageDispatched, Message: common.Hash{1}},
		{Kind: journal.MessageConsumed, Message: common.Hash{1}},
		{Kind: journal.GasBurned, Message: common.Hash{1}},
	}
	if err := validateJournalShape(notes); err == nil {
		t.Fatalf("expected journal shape validation to fail")
	}
}
