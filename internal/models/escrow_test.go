package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscrowStatus_IsValid(t *testing.T) {
	valid := []EscrowStatus{
		EscrowStatusAwaitingClient,
		EscrowStatusAwaitingMaster,
		EscrowStatusConfirmedByMaster,
		EscrowStatusReleasedToMaster,
		EscrowStatusRefundedToClient,
		EscrowStatusDisputed,
		EscrowStatusCancelled,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "status=%s", s)
	}

	assert.False(t, EscrowStatus("PENDING").IsValid())
	assert.False(t, EscrowStatus("").IsValid())
}

func TestEscrowStatus_IsTerminal(t *testing.T) {
	terminal := []EscrowStatus{
		EscrowStatusReleasedToMaster,
		EscrowStatusRefundedToClient,
		EscrowStatusCancelled,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "status=%s", s)
	}

	active := []EscrowStatus{
		EscrowStatusAwaitingClient,
		EscrowStatusAwaitingMaster,
		EscrowStatusConfirmedByMaster,
		EscrowStatusDisputed,
	}
	for _, s := range active {
		assert.False(t, s.IsTerminal(), "status=%s", s)
	}
}

func TestParty_IsValid(t *testing.T) {
	assert.True(t, PartyClient.IsValid())
	assert.True(t, PartyMaster.IsValid())
	assert.False(t, Party("admin").IsValid())
	assert.False(t, Party("").IsValid())
}
