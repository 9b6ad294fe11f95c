package commitment

import (
	"errors"
	"sort"
	"sync"

	"github.com/gear-tech/gear-sub008/common"
	"github.com/gear-tech/gear-sub008/xcrypto"
)

var (
	// ErrDigestMismatch is returned when a ValidationReply's digest does not
	// match the batch being aggregated (spec.md §4.9 step 1).
	ErrDigestMismatch = errors.New("commitment: validation reply digest mismatch")
	// ErrUnauthorizedSigner is returned by check_origin callers that reject
	// a recovered signer (spec.md §4.9 step 3).
	ErrUnauthorizedSigner = errors.New("commitment: signer not authorized for this batch")
)

// CheckOrigin authorizes a recovered signer address before its signature is
// admitted (spec.md §4.9 step 3: "Call check_origin(signer); reject on
// error").
type CheckOrigin func(signer common.Address) error

// MultisignedBatchCommitment collects contract-bound signatures for one
// BatchCommitment until a quorum threshold is reached, the way VotePool
// collects votes keyed by validator address (consensus/bft/vote_pool.go) —
// except here "weight" is implicitly 1 per distinct signer and the quorum
// is an externally configured count, not 2/3+1 of a staked total.
type MultisignedBatchCommitment struct {
	mu sync.Mutex

	batch         BatchCommitment
	digest        common.Hash
	routerAddress common.Address
	threshold     int
	signatures    map[common.Address][]byte
}

// NewMultisignedBatchCommitment seeds a fresh aggregation with the
// producer's own signature (spec.md §4.9 "Producer ... signs it").
func NewMultisignedBatchCommitment(batch BatchCommitment, routerAddress common.Address, threshold int, signer *xcrypto.PrivateKey) (*MultisignedBatchCommitment, error) {
	digest := batch.Digest()
	sig, err := signer.ContractSignature(routerAddress, digest)
	if err != nil {
		return nil, err
	}
	m := &MultisignedBatchCommitment{
		batch: batch, digest: digest, routerAddress: routerAddress, threshold: threshold,
		signatures: make(map[common.Address][]byte),
	}
	m.signatures[signer.Address()] = sig
	return m, nil
}

// AcceptValidationReply verifies and admits one participant's signature
// (spec.md §4.9 "Validation reply aggregation", steps 1-4). Re-admitting
// the same signer's signature is a no-op, matching the reference's
// BTreeMap::insert idempotence.
func (m *MultisignedBatchCommitment) AcceptValidationReply(reply ValidationReply, checkOrigin CheckOrigin) error {
	if reply.Digest != m.digest {
		return ErrDigestMismatch
	}
	signer, err := xcrypto.RecoverContractSignature(m.routerAddress, reply.Digest, reply.Signature)
	if err != nil {
		return err
	}
	if err := checkOrigin(signer); err != nil {
		return ErrUnauthorizedSigner
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.signatures[signer] = reply.Signature
	return nil
}

// ThresholdReached reports whether enough distinct signers have signed to
// submit (spec.md §4.9 "Threshold submission").
func (m *MultisignedBatchCommitment) ThresholdReached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signatures) >= m.threshold
}

// SignatureCount returns the number of distinct signers collected so far.
func (m *MultisignedBatchCommitment) SignatureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signatures)
}

// Signature pairs one signer with their contract-bound signature, ordered
// deterministically for submission.
type Signature struct {
	Signer    common.Address
	Signature []byte
}

// IntoParts returns the batch and its signatures sorted by signer address,
// ready for a settlement-layer commit_batch call (spec.md §6).
func (m *MultisignedBatchCommitment) IntoParts() (BatchCommitment, []Signature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Signature, 0, len(m.signatures))
	for signer, sig := range m.signatures {
		out = append(out, Signature{Signer: signer, Signature: append([]byte(nil), sig...)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Signer.String() < out[j].Signer.String()
	})
	return m.batch, out
}

// Digest returns the batch digest this aggregation is collecting
// signatures for.
func (m *MultisignedBatchCommitment) Digest() common.Hash { return m.digest }
