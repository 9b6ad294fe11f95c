package costs

// ChargeResult is the outcome of offering a charge to a counter.
type ChargeResult uint8

const (
	Charged ChargeResult = iota
	NotEnough
)

// GasCounter is the per-message saturating decrement counter (spec §3).
// Burned gas is never refunded; the counter never goes negative or wraps.
type GasCounter struct {
	limit  uint64
	left   uint64
	burned uint64
}

// NewGasCounter creates a counter with limit gas available.
func NewGasCounter(limit uint64) *GasCounter {
	return &GasCounter{limit: limit, left: limit}
}

func (g *GasCounter) Limit() uint64  { return g.limit }
func (g *GasCounter) Left() uint64   { return g.left }
func (g *GasCounter) Burned() uint64 { return g.burned }

// ChargeIfEnough attempts to debit amount. On NotEnough the counter is left
// unchanged (spec §4.1: "a refusal ... leaves counters unchanged").
func (g *GasCounter) ChargeIfEnough(amount uint64) ChargeResult {
	if amount > g.left {
		return NotEnough
	}
	g.left -= amount
	g.burned += amount
	return Charged
}

// Refund returns amount to left and removes it from burned, capped at what
// has been charged so far; ChargeBoth uses it to roll back a gas charge
// when the allowance refuses.
func (g *GasCounter) Refund(amount uint64) {
	if amount > g.limit-g.left {
		amount = g.limit - g.left
	}
	g.left += amount
	g.burned -= amount
}

// GasAllowanceCounter is the per-block saturating decrement counter that
// bounds total work done in one block regardless of any single message's
// own gas limit (spec §3, §4.6).
type GasAllowanceCounter struct {
	left uint64
}

// NewGasAllowanceCounter creates a counter with limit allowance available.
func NewGasAllowanceCounter(limit uint64) *GasAllowanceCounter {
	return &GasAllowanceCounter{left: limit}
}

func (a *GasAllowanceCounter) Left() uint64 { return a.left }

// ChargeIfEnough debits amount from the block allowance, or refuses.
func (a *GasAllowanceCounter) ChargeIfEnough(amount uint64) ChargeResult {
	if amount > a.left {
		return NotEnough
	}
	a.left -= amount
	return Charged
}

// ChargeError is returned by ChargeBoth to identify which counter refused.
type ChargeError struct {
	GasLimitExceeded     bool
	GasAllowanceExceeded bool
}

func (e *ChargeError) Error() string {
	switch {
	case e.GasLimitExceeded:
		return "costs: gas limit exceeded"
	case e.GasAllowanceExceeded:
		return "costs: gas allowance exceeded"
	default:
		return "costs: charge error"
	}
}

// ChargeBoth offers amount to gas then to allowance, in that order (spec
// §4.1: "offered to both counters in the order gas, gas-allowance"). If
// gas refuses, allowance is never touched. If gas accepts but allowance
// refuses, the gas charge is rolled back so the combined operation is
// atomic.
func ChargeBoth(gas *GasCounter, allowance *GasAllowanceCounter, amount uint64) error {
	if gas.ChargeIfEnough(amount) == NotEnough {
		return &ChargeError{GasLimitExceeded: true}
	}
	if allowance.ChargeIfEnough(amount) == NotEnough {
		gas.Refund(amount)
		return &ChargeError{GasAllowanceExceeded: true}
	}
	return nil
}
