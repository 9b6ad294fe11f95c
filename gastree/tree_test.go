package gastree

import "testing"

func id(b byte) (h [32]byte) { h[0] = b; return }

func TestSplitWithValueAndConsume(t *testing.T) {
	tr := New()
	root := id(1)
	if err := tr.Issue(root, 1000); err != nil {
		t.Fatal(err)
	}
	child := id(2)
	if err := tr.SplitWithValue(root, child, 400); err != nil {
		t.Fatal(err)
	}
	r, _ := tr.Get(root)
	if r.Value != 600 {
		t.Fatalf("expected parent debited to 600, got %d", r.Value)
	}
	if err := tr.CheckConservation(); err != nil {
		t.Fatal(err)
	}

	parent, amount, err := tr.Consume(child)
	if err != nil {
		t.Fatal(err)
	}
	if parent != root || amount != 400 {
		t.Fatalf("unexpected consume result: parent=%v amount=%d", parent, amount)
	}
	r, _ = tr.Get(root)
	if r.Value != 1000 {
		t.Fatalf("expected full value returned to parent, got %d", r.Value)
	}
	if err := tr.CheckConservation(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumeRejectsNodeWithChildren(t *testing.T) {
	tr := New()
	root := id(1)
	tr.Issue(root, 100)
	child := id(2)
	tr.Split(root, child)
	if _, _, err := tr.Consume(root); err != ErrHasChildren {
		t.Fatalf("expected ErrHasChildren, got %v", err)
	}
}

func TestLockUnlockConserves(t *testing.T) {
	tr := New()
	root := id(1)
	tr.Issue(root, 500)
	if err := tr.Lock(root, 0, 200); err != nil {
		t.Fatal(err)
	}
	r, _ := tr.Get(root)
	if r.Value != 300 || r.Lock[0] != 200 {
		t.Fatalf("unexpected state after lock: %+v", r)
	}
	if err := tr.CheckConservation(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Unlock(root, 0, 200); err != nil {
		t.Fatal(err)
	}
	r, _ = tr.Get(root)
	if r.Value != 500 || r.Lock[0] != 0 {
		t.Fatalf("unexpected state after unlock: %+v", r)
	}
}

func TestReservationIsolation(t *testing.T) {
	tr := New()
	root := id(1)
	tr.Issue(root, 1000)
	rid := id(9)
	if err := tr.Reserve(root, rid, 300); err != nil {
		t.Fatal(err)
	}
	r, _ := tr.Get(root)
	if r.Value != 700 {
		t.Fatalf("expected owner debited at reserve time, got %d", r.Value)
	}
	res, _ := tr.Get(rid)
	if res.Kind != Reserved || res.Value != 300 {
		t.Fatalf("unexpected reservation node: %+v", res)
	}
	if err := tr.CheckConservation(); err != nil {
		t.Fatal(err)
	}
}

func TestBurnReducesSumAndIncreasesBurned(t *testing.T) {
	tr := New()
	root := id(1)
	tr.Issue(root, 100)
	if err := tr.Burn(root, 40); err != nil {
		t.Fatal(err)
	}
	if tr.TotalBurned() != 40 {
		t.Fatalf("expected burned=40, got %d", tr.TotalBurned())
	}
	if err := tr.CheckConservation(); err != nil {
		t.Fatal(err)
	}
}
