// Package xcrypto provides the cryptographic primitives this module treats
// as typed capabilities (spec.md §1 non-goal: "Cryptographic primitives
// (ECDSA, Keccak, BLS, FROST); we use them as typed capabilities"). It is a
// thin, dependency-grounded wrapper — not a primitive implementation.
package xcrypto

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/gear-tech/gear-sub008/common"
)

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// Keccak256Hash hashes the concatenation of data into a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// Blake2b256 hashes the concatenation of data with Blake2b-256, used for
// deriving ActorId/CodeId from structured preimages (spec.md §3).
func Blake2b256(data ...[]byte) common.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("xcrypto: blake2b256: " + err.Error())
	}
	for _, d := range data {
		h.Write(d)
	}
	return common.BytesToHash(h.Sum(nil))
}

// DeriveActorId derives a program's stable identifier from its creator and
// a per-creation salt, the way a program is born from an init dispatch.
func DeriveActorId(creator common.ActorId, codeId common.CodeId, salt []byte) common.ActorId {
	return Blake2b256(creator.Bytes(), codeId.Bytes(), salt)
}

// GenerateOutgoing derives the MessageId of the n-th message sent by the
// execution of originMessage (spec.md S4: "generate_outgoing(origin_message_id, 0)").
func GenerateOutgoing(originMessage common.MessageId, nonce uint32) common.MessageId {
	var n [4]byte
	n[0] = byte(nonce)
	n[1] = byte(nonce >> 8)
	n[2] = byte(nonce >> 16)
	n[3] = byte(nonce >> 24)
	return Blake2b256(originMessage.Bytes(), n[:])
}
