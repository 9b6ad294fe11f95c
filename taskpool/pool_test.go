package taskpool

import (
	"testing"

	"github.com/gear-tech/gear-sub008/common"
)

func TestAddRejectsZeroDuration(t *testing.T) {
	p := New()
	task := Task{Kind: WakeMessage, Program: common.Hash{1}, Message: common.Hash{2}}
	if err := p.Add(10, 10, task); err != ErrZeroDuration {
		t.Fatalf("expected ErrZeroDuration, got %v", err)
	}
	if err := p.Add(10, 5, task); err != ErrZeroDuration {
		t.Fatalf("expected ErrZeroDuration for past height, got %v", err)
	}
}

func TestDrainUpToReturnsInAscendingHeightOrder(t *testing.T) {
	p := New()
	t1 := Task{Kind: WakeMessage, Message: common.Hash{1}}
	t2 := Task{Kind: RemoveFromMailbox, Owner: common.Hash{2}, Message: common.Hash{3}}
	t3 := Task{Kind: PauseProgram, Program: common.Hash{4}}

	if err := p.Add(0, 5, t1); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(0, 3, t2); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(0, 3, t3); err != nil {
		t.Fatal(err)
	}

	drained := p.DrainUpTo(4)
	if len(drained) != 2 {
		t.Fatalf("expected the two height-3 tasks, got %d", len(drained))
	}
	for _, task := range drained {
		if task.Kind == WakeMessage {
			t.Fatalf("height-5 task must not be drained by DrainUpTo(4)")
		}
	}

	remaining := p.DrainUpTo(10)
	if len(remaining) != 1 || remaining[0].Kind != WakeMessage {
		t.Fatalf("expected the remaining height-5 task, got %+v", remaining)
	}
}

func TestDeleteIsIdempotentAndSilent(t *testing.T) {
	p := New()
	task := Task{Kind: SendDispatch, Message: common.Hash{9}}
	if err := p.Add(0, 1, task); err != nil {
		t.Fatal(err)
	}
	p.Delete(1, task)
	p.Delete(1, task) // second delete must not panic or error

	if drained := p.DrainUpTo(1); len(drained) != 0 {
		t.Fatalf("expected nothing left to drain, got %+v", drained)
	}
}

func TestAddIsIdempotentForIdenticalTask(t *testing.T) {
	p := New()
	task := Task{Kind: RemoveGasReservation, Program: common.Hash{1}, Message: common.Hash{2}}
	if err := p.Add(0, 1, task); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(0, 1, task); err != nil {
		t.Fatal(err)
	}
	if drained := p.DrainUpTo(1); len(drained) != 1 {
		t.Fatalf("expected one collapsed entry, got %d", len(drained))
	}
}

func TestFiredSetDetectsDuplicate(t *testing.T) {
	f := NewFiredSet()
	task := Task{Kind: WakeMessage, Message: common.Hash{1}}
	if already := f.MarkAndCheck(task); already {
		t.Fatalf("first mark should not report already-fired")
	}
	if already := f.MarkAndCheck(task); !already {
		t.Fatalf("second mark should report already-fired")
	}
}
