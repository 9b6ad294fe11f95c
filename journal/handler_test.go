package journal

import "testing"

type recordingHandler struct {
	applied []Note
}

func (r *recordingHandler) Apply(n Note) error {
	r.applied = append(r.applied, n)
	return nil
}

func TestValidateOrderingRejectsConsumedBeforeOtherNote(t *testing.T) {
	mid := common32(1)
	notes := []Note{
		{Kind: MessageConsumed, Message: mid},
		{Kind: GasBurned, Message: mid},
	}
	if ValidateOrdering(notes) {
		t.Fatalf("expected ordering violation to be detected")
	}
}

func TestValidateOrderingAcceptsConsumedLast(t *testing.T) {
	mid := common32(1)
	notes := []Note{
		{Kind: GasBurned, Message: mid},
		{Kind: SendDispatch, Message: mid},
		{Kind: MessageConsumed, Message: mid},
	}
	if !ValidateOrdering(notes) {
		t.Fatalf("expected valid ordering to pass")
	}
}

func TestApplyAppliesInOrder(t *testing.T) {
	h := &recordingHandler{}
	notes := []Note{{Kind: GasBurned}, {Kind: MessageConsumed}}
	if err := Apply(h, notes); err != nil {
		t.Fatal(err)
	}
	if len(h.applied) != 2 || h.applied[1].Kind != MessageConsumed {
		t.Fatalf("unexpected applied notes: %+v", h.applied)
	}
}

func common32(b byte) (h [32]byte) { h[0] = b; return }
