package executor

import (
	"testing"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/costs"
	"github.com/gear-tech/gear-sub008/journal"
	"github.com/gear-tech/gear-sub008/lazypage"
	"github.com/gear-tech/gear-sub008/memaccess"
)

type fakeRuntime struct {
	outcome Outcome
	runErr  error

	instantiated bool
	pages        *lazypage.Handler
	mem          memaccess.Memory
	writePage    *lazypage.WasmPage
}

func (r *fakeRuntime) Instantiate(entryPoint string, memSizeBytes uint32, pages *lazypage.Handler, mem memaccess.Memory) error {
	r.instantiated = true
	r.pages = pages
	r.mem = mem
	if r.writePage != nil {
		if _, err := pages.Access(*r.writePage, lazypage.Write, lazypage.FromHostFunc, costs.NewGasCounter(1_000_000)); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRuntime) Run() (Outcome, error) { return r.outcome, r.runErr }

type noStorage struct{}

func (noStorage) LoadGearPage(p lazypage.GearPage) ([]byte, bool, error) { return nil, false, nil }

func baseInput(rt Runtime) Input {
	return Input{
		Dispatch:     journal.StoredDispatch{Message: journal.Message{Id: common.Hash{1}, Kind: journal.KindHandle}, Context: journal.NewContextStore()},
		Program:      common.Hash{2},
		MemSizeBytes: 64 * 1024,
		Gas:          costs.NewGasCounter(1_000_000),
		Allowance:    costs.NewGasAllowanceCounter(1_000_000),
		Schedule:     costs.DefaultSchedule(),
		CodeSections: CodeSections{TotalBytes: 1000, Count: 2},
		Runtime:      rt,
		PageStorage:  noStorage{},
	}
}

func TestRunSuccessEndsWithGasBurnedThenMessageConsumed(t *testing.T) {
	rt := &fakeRuntime{outcome: Outcome{Reason: TerminationSuccess}}
	in := baseInput(rt)

	outcome, notes, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}
	if !rt.instantiated {
		t.Fatalf("expected runtime to be instantiated")
	}
	if outcome.Reason != TerminationSuccess {
		t.Fatalf("expected success, got %v", outcome.Reason)
	}
	if len(notes) != 3 {
		t.Fatalf("expected MessageDispatched, GasBurned, MessageConsumed, got %+v", notes)
	}
	if notes[0].Kind != journal.MessageDispatched {
		t.Fatalf("expected first note to be MessageDispatched, got %v", notes[0].Kind)
	}
	last := notes[len(notes)-1]
	if last.Kind != journal.MessageConsumed || last.Outcome != journal.OutcomeSuccess {
		t.Fatalf("expected MessageConsumed(Success) last, got %+v", last)
	}
	if notes[len(notes)-2].Kind != journal.GasBurned {
		t.Fatalf("expected GasBurned immediately before MessageConsumed, got %+v", notes)
	}
	if in.Gas.Burned() == 0 {
		t.Fatalf("expected instantiation cost to have been charged")
	}
}

func TestRunEmitsUpdatePageForWrittenPage(t *testing.T) {
	wp := lazypage.WasmPage(3)
	rt := &fakeRuntime{outcome: Outcome{Reason: TerminationSuccess}, writePage: &wp}
	in := baseInput(rt)

	_, notes, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range notes {
		if n.Kind == journal.UpdatePage && n.Page == wp {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an UpdatePage note for page %d, got %+v", wp, notes)
	}
}

func TestRunWaitProducesWaitDispatchNote(t *testing.T) {
	d := uint32(10)
	rt := &fakeRuntime{outcome: Outcome{Reason: TerminationWait, WaitDuration: &d, WaitedType: journal.WaitFor}}
	in := baseInput(rt)

	outcome, notes, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Reason != TerminationWait {
		t.Fatalf("expected wait outcome, got %v", outcome.Reason)
	}
	var wait *journal.Note
	for i := range notes {
		if notes[i].Kind == journal.WaitDispatch {
			wait = &notes[i]
		}
		if notes[i].Kind == journal.MessageConsumed {
			t.Fatalf("a waiting dispatch must not be consumed yet, got %+v", notes)
		}
	}
	if wait == nil {
		t.Fatalf("expected a WaitDispatch note, got %+v", notes)
	}
	if wait.Message != in.Dispatch.Message.Id || *wait.WaitDuration != d || wait.WaitedType != journal.WaitFor {
		t.Fatalf("unexpected wait note: %+v", wait)
	}
}

func TestRunExitProducesExitDispatchNote(t *testing.T) {
	heir := common.Hash{9}
	rt := &fakeRuntime{outcome: Outcome{Reason: TerminationExit, Heir: heir}}
	in := baseInput(rt)

	_, notes, err := Run(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 4 {
		t.Fatalf("expected MessageDispatched, ExitDispatch, GasBurned, MessageConsumed, got %+v", notes)
	}
	exit := notes[1]
	if exit.Kind != journal.ExitDispatch || exit.Heir != heir || exit.Program != in.Program {
		t.Fatalf("unexpected exit note: %+v", exit)
	}
	last := notes[len(notes)-1]
	if last.Kind != journal.MessageConsumed || last.Outcome != journal.OutcomeExit {
		t.Fatalf("expected MessageConsumed(Exit) last, got %+v", last)
	}
}

func TestRunInsufficientGasForInstantiationSkipsExecution(t *testing.T) {
	rt := &fakeRuntime{outcome: Outcome{Reason: TerminationSuccess}}
	in := baseInput(rt)
	in.Gas = costs.NewGasCounter(1) // far below instantiation cost

	outcome, notes, err := Run(in)
	if err != ErrNoExecution {
		t.Fatalf("expected ErrNoExecution, got %v", err)
	}
	if rt.instantiated {
		t.Fatalf("runtime must not be instantiated when pre-charge fails")
	}
	if outcome.Reason != TerminationTrap {
		t.Fatalf("expected trap outcome, got %v", outcome.Reason)
	}
	if notes != nil {
		t.Fatalf("expected no notes, got %+v", notes)
	}
}
