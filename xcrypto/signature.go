package xcrypto

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/gear-tech/gear-sub008/common"
)

// SignatureLength is the length of a pre-EIP-155 recoverable ECDSA
// signature: r(32) || s(32) || v(1), v in {27,28} (spec.md §6).
const SignatureLength = 65

var (
	// ErrInvalidSignatureLength is returned when a signature is not exactly
	// SignatureLength bytes.
	ErrInvalidSignatureLength = errors.New("xcrypto: invalid signature length")
	// ErrInvalidRecoveryID is returned when v is not 27 or 28.
	ErrInvalidRecoveryID = errors.New("xcrypto: invalid recovery id")
)

// PrivateKey is a typed capability wrapping a secp256k1 signing key.
type PrivateKey struct{ key *btcec.PrivateKey }

// GeneratePrivateKey is a test/tooling helper; production keys are injected,
// never generated ambiently.
func GeneratePrivateKey() (*PrivateKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: k}, nil
}

// PublicKey returns the 33-byte compressed public key.
func (k *PrivateKey) PublicKey() []byte {
	return k.key.PubKey().SerializeCompressed()
}

// Address derives the 20-byte settlement-layer address from the public key,
// the low 20 bytes of Keccak256 of the uncompressed public key body (the
// same derivation go-ethereum's crypto.PubkeyToAddress uses).
func (k *PrivateKey) Address() common.Address {
	return PubkeyToAddress(k.key.PubKey())
}

// PubkeyToAddress derives the settlement-layer address for pub.
func PubkeyToAddress(pub *btcec.PublicKey) common.Address {
	raw := pub.SerializeUncompressed()[1:] // drop the 0x04 prefix
	digest := Keccak256(raw)
	return common.BytesToAddress(digest[12:])
}

// Sign produces a pre-EIP-155 recoverable signature over digest:
// r(32) || s(32) || v(1), v in {27,28}.
func (k *PrivateKey) Sign(digest common.Hash) ([]byte, error) {
	sig, err := ecdsa.SignCompact(k.key, digest.Bytes(), false)
	if err != nil {
		return nil, err
	}
	// btcec's compact format is v(1) || r(32) || s(32) with v in [27,34];
	// normalize to the r||s||v(27/28) layout spec.md §6 requires.
	out := make([]byte, SignatureLength)
	copy(out[0:32], sig[1:33])
	copy(out[32:64], sig[33:65])
	v := sig[0]
	if v >= 31 {
		v -= 4 // strip the compressed-key offset btcec adds
	}
	out[64] = v
	return out, nil
}

// RecoverAddress recovers the signer's address from a pre-EIP-155 signature
// over digest (spec TESTABLE PROPERTY 6).
func RecoverAddress(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrInvalidSignatureLength
	}
	v := sig[64]
	if v != 27 && v != 28 {
		return common.Address{}, ErrInvalidRecoveryID
	}
	compact := make([]byte, SignatureLength)
	compact[0] = v - 27 + 27 // btcec compact recovery ids also start at 27
	copy(compact[1:33], sig[0:32])
	copy(compact[33:65], sig[32:64])
	pub, _, err := ecdsa.RecoverCompact(compact, digest.Bytes())
	if err != nil {
		return common.Address{}, err
	}
	return PubkeyToAddress(pub), nil
}

// ContractDigest computes keccak256(0x19 || 0x00 || contract_address || digest),
// the EIP-191-variant-0x00 "contract-specific digest" of spec.md §6.
func ContractDigest(contract common.Address, digest common.Hash) common.Hash {
	return Keccak256Hash([]byte{0x19, 0x00}, contract.Bytes(), digest.Bytes())
}

// EthereumSignedMessageDigest computes keccak256("\x19Ethereum Signed
// Message:\n32" || digest), the EIP-191 personal-message variant.
func EthereumSignedMessageDigest(digest common.Hash) common.Hash {
	return Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest.Bytes())
}

// ContractSignature signs digest for a specific settlement-layer contract
// (router), per spec.md §6's contract-bound signature scheme.
func (k *PrivateKey) ContractSignature(contract common.Address, digest common.Hash) ([]byte, error) {
	return k.Sign(ContractDigest(contract, digest))
}

// RecoverContractSignature recovers the signer of a contract-bound
// signature produced by ContractSignature.
func RecoverContractSignature(contract common.Address, digest common.Hash, sig []byte) (common.Address, error) {
	return RecoverAddress(ContractDigest(contract, digest), sig)
}
