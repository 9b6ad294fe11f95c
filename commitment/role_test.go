package commitment

import (
	"testing"

	"github.com/gear-tech/gear-sub008/common"
)

func TestBeginSlotAssignsProducerRole(t *testing.T) {
	key := mustKey(t)
	m := NewMachine(key.Address())
	m.BeginSlot(key.Address())
	if m.Role() != RoleProducer {
		t.Fatalf("expected RoleProducer, got %v", m.Role())
	}
}

func TestBeginSlotAssignsParticipantRole(t *testing.T) {
	self := mustKey(t)
	producer := mustKey(t)
	m := NewMachine(self.Address())
	m.BeginSlot(producer.Address())
	if m.Role() != RoleParticipant {
		t.Fatalf("expected RoleParticipant, got %v", m.Role())
	}
}

func TestProducerFlowReachesThresholdAndSubmits(t *testing.T) {
	producerKey := mustKey(t)
	participantKey := mustKey(t)
	router := common.Address{0xAA}

	m := NewMachine(producerKey.Address())
	m.BeginSlot(producerKey.Address())

	batch := BatchCommitment{BlockHash: common.Hash{1}}
	req, err := m.Produce(batch, []common.Hash{{1}}, nil, router, 2, producerKey)
	if err != nil {
		t.Fatal(err)
	}
	if m.Role() != RoleCoordinator {
		t.Fatalf("expected RoleCoordinator after Produce, got %v", m.Role())
	}

	sig, err := participantKey.ContractSignature(router, req.Digest)
	if err != nil {
		t.Fatal(err)
	}
	reached, err := m.AcceptReply(ValidationReply{Digest: req.Digest, Signature: sig}, func(common.Address) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if !reached {
		t.Fatalf("expected threshold reached")
	}

	gotBatch, sigs, err := m.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if gotBatch.BlockHash != batch.BlockHash {
		t.Fatalf("submitted batch does not match the produced one")
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}
	if m.Role() != RoleInitial {
		t.Fatalf("expected RoleInitial after Submit, got %v", m.Role())
	}
}

func TestProduceFailsWhenNotProducer(t *testing.T) {
	self := mustKey(t)
	other := mustKey(t)
	m := NewMachine(self.Address())
	m.BeginSlot(other.Address())
	_, err := m.Produce(BatchCommitment{}, nil, nil, common.Address{}, 1, self)
	if err != ErrWrongRole {
		t.Fatalf("expected ErrWrongRole, got %v", err)
	}
}

func TestAcceptRequestAndRejectRequestReturnToInitial(t *testing.T) {
	self := mustKey(t)
	producer := mustKey(t)
	m := NewMachine(self.Address())
	m.BeginSlot(producer.Address())
	m.AcceptRequest()
	if m.Role() != RoleInitial {
		t.Fatalf("expected RoleInitial after AcceptRequest, got %v", m.Role())
	}

	m.BeginSlot(producer.Address())
	m.RejectRequest(ErrWrongRole)
	if m.Role() != RoleInitial {
		t.Fatalf("expected RoleInitial after RejectRequest, got %v", m.Role())
	}
}
