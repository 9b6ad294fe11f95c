// Package gastree implements the hierarchical gas tree (spec.md §3, §4.7,
// component C7): a forest of arena-indexed nodes tracking every gas flow
// (splits, cuts, reservations, locks) so the sum of live value plus locked
// value is conserved across all charges and sends.
//
// Per design note in spec.md §9 ("Gas tree as indexed arena"), the tree is
// an arena mapping 32-byte keys to tagged-variant records; nodes reference
// their parent by key, never by pointer, so the structure has no cycles to
// manage.
package gastree

import (
	"errors"

	"github.com/gear-tech/gear-sub008/common"
)

// Kind tags a gas-tree node's variant (spec.md §3).
type Kind uint8

const (
	External Kind = iota
	Reserved
	SpecifiedLocal
	UnspecifiedLocal
	Cut
)

// NumLocks is the number of independently tracked lock slots per node
// (spec.md §3: "lock[4]"). Slot assignment is left to callers; this
// package only enforces disjointness and conservation.
const NumLocks = 4

// Node is one entry of the gas-tree arena.
type Node struct {
	Kind   Kind
	Value  uint64
	Lock   [NumLocks]uint64
	Parent common.Hash // zero for roots (External nodes)
}

var (
	ErrNotFound          = errors.New("gastree: node not found")
	ErrAlreadyExists     = errors.New("gastree: node already exists")
	ErrInsufficientValue = errors.New("gastree: insufficient value")
	ErrInsufficientLock  = errors.New("gastree: insufficient locked amount")
	ErrHasChildren       = errors.New("gastree: cannot consume node with live descendants")
	ErrAlreadyConsumed   = errors.New("gastree: node already consumed")
	ErrConservation      = errors.New("gastree: conservation invariant violated")
)

// Tree is the arena. The zero value is not usable; use New.
type Tree struct {
	nodes    map[common.Hash]*Node
	children map[common.Hash]map[common.Hash]struct{}
	issued   uint64
	burned   uint64
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		nodes:    make(map[common.Hash]*Node),
		children: make(map[common.Hash]map[common.Hash]struct{}),
	}
}

func (t *Tree) addChild(parent, child common.Hash) {
	set, ok := t.children[parent]
	if !ok {
		set = make(map[common.Hash]struct{})
		t.children[parent] = set
	}
	set[child] = struct{}{}
}

func (t *Tree) removeChild(parent, child common.Hash) {
	if set, ok := t.children[parent]; ok {
		delete(set, child)
		if len(set) == 0 {
			delete(t.children, parent)
		}
	}
}

// Issue creates a new External root node with the given value, as gas
// enters the system (e.g. a user-funded gas limit).
func (t *Tree) Issue(id common.Hash, value uint64) error {
	if _, exists := t.nodes[id]; exists {
		return ErrAlreadyExists
	}
	t.nodes[id] = &Node{Kind: External, Value: value}
	t.issued += value
	return nil
}

// Get returns a copy of the node at id.
func (t *Tree) Get(id common.Hash) (Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, ErrNotFound
	}
	return *n, nil
}

// TotalIssued and TotalBurned support the conservation testable property
// (spec.md §8 property 1): Σvalue + Σlock + burned == issued.
func (t *Tree) TotalIssued() uint64 { return t.issued }
func (t *Tree) TotalBurned() uint64 { return t.burned }

// Sum returns Σ(node.value) + Σ(node.lock.*) across every live node, for
// the conservation invariant check.
func (t *Tree) Sum() uint64 {
	var total uint64
	for _, n := range t.nodes {
		total += n.Value
		for _, l := range n.Lock {
			total += l
		}
	}
	return total
}

// CheckConservation verifies spec.md §8 property 1.
func (t *Tree) CheckConservation() error {
	if t.Sum()+t.burned != t.issued {
		return ErrConservation
	}
	return nil
}

// Split creates an UnspecifiedLocal child of parent charging no value
// (spec.md §4.7 "split").
func (t *Tree) Split(parent, child common.Hash) error {
	p, ok := t.nodes[parent]
	if !ok {
		return ErrNotFound
	}
	if _, exists := t.nodes[child]; exists {
		return ErrAlreadyExists
	}
	t.nodes[child] = &Node{Kind: UnspecifiedLocal, Parent: parent}
	t.addChild(parent, child)
	_ = p
	return nil
}

// SplitWithValue debits parent.Value by amount and creates a SpecifiedLocal
// child holding it (spec.md §4.7 "split_with_value").
func (t *Tree) SplitWithValue(parent, child common.Hash, amount uint64) error {
	p, ok := t.nodes[parent]
	if !ok {
		return ErrNotFound
	}
	if _, exists := t.nodes[child]; exists {
		return ErrAlreadyExists
	}
	if p.Value < amount {
		return ErrInsufficientValue
	}
	p.Value -= amount
	t.nodes[child] = &Node{Kind: SpecifiedLocal, Value: amount, Parent: parent}
	t.addChild(parent, child)
	return nil
}

// Cut debits parent and creates a detached Cut node, used for mailbox and
// dispatch-stash holds that must survive the owning message's consumption
// (spec.md §4.7 "cut").
func (t *Tree) Cut(parent, child common.Hash, amount uint64) error {
	p, ok := t.nodes[parent]
	if !ok {
		return ErrNotFound
	}
	if _, exists := t.nodes[child]; exists {
		return ErrAlreadyExists
	}
	if p.Value < amount {
		return ErrInsufficientValue
	}
	p.Value -= amount
	t.nodes[child] = &Node{Kind: Cut, Value: amount}
	return nil
}

// Reserve creates a Reserved node owned by the given program, debiting the
// owning message's value at reservation time (spec.md §3, §4.7 "reserve").
// Reserved nodes do not count toward any ancestor's value once created
// (spec.md §4.7 "Reservation isolation").
func (t *Tree) Reserve(owner, rid common.Hash, amount uint64) error {
	o, ok := t.nodes[owner]
	if !ok {
		return ErrNotFound
	}
	if _, exists := t.nodes[rid]; exists {
		return ErrAlreadyExists
	}
	if o.Value < amount {
		return ErrInsufficientValue
	}
	o.Value -= amount
	t.nodes[rid] = &Node{Kind: Reserved, Value: amount, Parent: owner}
	return nil
}

// Lock moves amount from a node's spendable value into lock slot lockID
// (spec.md §4.7 "lock"). Locking requires value >= amount (lock
// disjointness: each slot is independently tracked).
func (t *Tree) Lock(id common.Hash, lockID uint8, amount uint64) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if int(lockID) >= NumLocks {
		return ErrNotFound
	}
	if n.Value < amount {
		return ErrInsufficientValue
	}
	n.Value -= amount
	n.Lock[lockID] += amount
	return nil
}

// Unlock moves amount back from lock slot lockID into spendable value.
func (t *Tree) Unlock(id common.Hash, lockID uint8, amount uint64) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if int(lockID) >= NumLocks || n.Lock[lockID] < amount {
		return ErrInsufficientLock
	}
	n.Lock[lockID] -= amount
	n.Value += amount
	return nil
}

// Burn removes amount from the system entirely (e.g. gas actually spent by
// execution), decrementing the node's value and incrementing total burned.
func (t *Tree) Burn(id common.Hash, amount uint64) error {
	n, ok := t.nodes[id]
	if !ok {
		return ErrNotFound
	}
	if n.Value < amount {
		return ErrInsufficientValue
	}
	n.Value -= amount
	t.burned += amount
	return nil
}

// Consume removes a leaf node and returns the amount owed back to its
// parent (or to the external account, if it was a root): its value plus
// whatever is still locked on it. Consuming a
// non-leaf requires every descendant to already be consumed (spec.md §3
// invariant, §4.7 "consume").
func (t *Tree) Consume(id common.Hash) (owedTo common.Hash, amount uint64, err error) {
	n, ok := t.nodes[id]
	if !ok {
		return common.Hash{}, 0, ErrAlreadyConsumed
	}
	if len(t.children[id]) > 0 {
		return common.Hash{}, 0, ErrHasChildren
	}
	amount = n.Value
	for _, l := range n.Lock {
		amount += l
	}
	parent := n.Parent
	delete(t.nodes, id)
	if !parent.Zero() {
		t.removeChild(parent, id)
		if p, ok := t.nodes[parent]; ok {
			p.Value += amount
			return parent, amount, nil
		}
	}
	// Root consumed (or parent already gone): the value leaves the tree
	// for good. The caller is responsible for crediting it to whatever
	// external account paid for the gas (the returned amount), but as far
	// as this tree's own conservation invariant (spec.md §8 property 1) is
	// concerned the value has exited the same as a burn, so it is counted
	// here rather than left for the caller to remember.
	t.burned += amount
	return common.Hash{}, amount, nil
}

// SystemReserve and SystemUnreserve model the gr_system_reserve_gas /
// unreserve family: a program-level reservation not tied to any single
// outgoing message, implemented as Reserve/Consume under a well-known
// per-program key chosen by the caller.
func (t *Tree) SystemReserve(owner, sysKey common.Hash, amount uint64) error {
	return t.Reserve(owner, sysKey, amount)
}

func (t *Tree) SystemUnreserve(sysKey common.Hash) (amount uint64, err error) {
	_, amount, err = t.Consume(sysKey)
	return amount, err
}
