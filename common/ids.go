// Package common holds the identifier and byte-slice types shared by every
// other package in this module: actors, messages, code, and gas
// reservations are all stable 32-byte identifiers that happen to live in
// separate namespaces.
package common

import (
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte opaque, content-addressed identifier.
type Hash [32]byte

// ActorId identifies a program. Distinct namespace from MessageId et al.
type ActorId = Hash

// MessageId identifies a dispatched message.
type MessageId = Hash

// CodeId identifies an instrumented WASM blob.
type CodeId = Hash

// ReservationId identifies a gas-tree reservation owned by a program.
type ReservationId = Hash

// LockId tags one of the four lock slots a gas-tree node may hold
// (gastree.NumLocks); which slot serves which purpose is chosen by callers.
type LockId = uint8

// Zero reports whether h is the all-zero identifier.
func (h Hash) Zero() bool {
	return h == Hash{}
}

// Bytes returns a copy of h's bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, len(h))
	copy(b, h[:])
	return b
}

// String renders h as a 0x-prefixed hex string.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// BytesToHash truncates/zero-pads b into a Hash, right-aligned like geth's
// common.BytesToHash (short input is padded on the left).
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}

// HexToHash parses a 0x-prefixed (or bare) hex string into a Hash.
func HexToHash(s string) Hash {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}
	}
	return BytesToHash(b)
}

// Address is a 20-byte settlement-layer (Ethereum-style) account address,
// used for router/contract addresses and recovered signers in the
// commitment pipeline (spec.md §6).
type Address [20]byte

// BytesToAddress truncates/zero-pads b into an Address, right-aligned.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > len(a) {
		b = b[len(b)-len(a):]
	}
	copy(a[len(a)-len(b):], b)
	return a
}

func (a Address) Bytes() []byte {
	b := make([]byte, len(a))
	copy(b, a[:])
	return b
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// GasValue is the wire/ledger type for a token or gas amount. It is a plain
// uint64 rather than a bignum on the hot gas-charging path, so amounts above
// the uint64 range are not representable.
type GasValue = uint64

// ValidateLen returns an error if b's length is not exactly n; used by
// wire decoders that must reject truncated or overlong fixed-size fields.
func ValidateLen(field string, b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("common: %s: expected %d bytes, got %d", field, n, len(b))
	}
	return nil
}
