package costs

import "testing"

func TestGasCounterChargeIfEnough(t *testing.T) {
	g := NewGasCounter(100)
	if g.ChargeIfEnough(40) != Charged {
		t.Fatalf("expected charge to succeed")
	}
	if g.Left() != 60 || g.Burned() != 40 {
		t.Fatalf("unexpected counter state: left=%d burned=%d", g.Left(), g.Burned())
	}
	if g.ChargeIfEnough(1000) != NotEnough {
		t.Fatalf("expected charge to fail")
	}
	if g.Left() != 60 || g.Burned() != 40 {
		t.Fatalf("refused charge must not mutate counters: left=%d burned=%d", g.Left(), g.Burned())
	}
}

func TestChargeBothOrderAndAtomicity(t *testing.T) {
	gas := NewGasCounter(100)
	allowance := NewGasAllowanceCounter(30)

	err := ChargeBoth(gas, allowance, 50)
	var ce *ChargeError
	if err == nil {
		t.Fatalf("expected error")
	}
	if ok := asChargeError(err, &ce); !ok || !ce.GasAllowanceExceeded {
		t.Fatalf("expected allowance-exceeded, got %v", err)
	}
	if gas.Left() != 100 || gas.Burned() != 0 {
		t.Fatalf("gas charge must roll back on allowance refusal: left=%d burned=%d", gas.Left(), gas.Burned())
	}

	gas2 := NewGasCounter(10)
	allowance2 := NewGasAllowanceCounter(1000)
	err = ChargeBoth(gas2, allowance2, 50)
	if ok := asChargeError(err, &ce); !ok || !ce.GasLimitExceeded {
		t.Fatalf("expected gas-limit-exceeded, got %v", err)
	}
	if allowance2.Left() != 1000 {
		t.Fatalf("allowance must be untouched when gas refuses first: left=%d", allowance2.Left())
	}
}

func asChargeError(err error, out **ChargeError) bool {
	ce, ok := err.(*ChargeError)
	if ok {
		*out = ce
	}
	return ok
}

func TestScheduleChargeSaturates(t *testing.T) {
	got := Charge(10, ^uint64(0), 2)
	if got != ^uint64(0) {
		t.Fatalf("expected saturation to max uint64, got %d", got)
	}
}
