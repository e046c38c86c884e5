package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistrationStatusRank(t *testing.T) {
	assert.Equal(t, 0, RegistrationStatusRank(RegistrationPaymentCompleted))
	assert.Equal(t, 1, RegistrationStatusRank(RegistrationInviteSent))
	assert.Equal(t, 2, RegistrationStatusRank(RegistrationAccountLinked))
	assert.Equal(t, -1, RegistrationStatusRank("SOMETHING_ELSE"))
	assert.Equal(t, -1, RegistrationStatusRank(""))
}

func TestSubscriptionUserAdvanceStatus(t *testing.T) {
	u := &SubscriptionUser{RegistrationStatus: RegistrationPaymentCompleted}

	assert.True(t, u.AdvanceStatus(RegistrationInviteSent))
	assert.Equal(t, RegistrationInviteSent, u.RegistrationStatus)

	// Same state again is a no-op.
	assert.False(t, u.AdvanceStatus(RegistrationInviteSent))

	// Backward moves are ignored.
	assert.False(t, u.AdvanceStatus(RegistrationPaymentCompleted))
	assert.Equal(t, RegistrationInviteSent, u.RegistrationStatus)

	assert.True(t, u.AdvanceStatus(RegistrationAccountLinked))
	assert.Equal(t, RegistrationAccountLinked, u.RegistrationStatus)

	// Unknown states never advance the record.
	assert.False(t, u.AdvanceStatus("MYSTERY_STATE"))
	assert.Equal(t, RegistrationAccountLinked, u.RegistrationStatus)
}

func TestSubscriptionUserAdvanceStatusFromEmpty(t *testing.T) {
	// A zero-value record ranks below every valid state and can advance
	// straight to any of them.
	u := &SubscriptionUser{}
	assert.True(t, u.AdvanceStatus(RegistrationPaymentCompleted))
	assert.Equal(t, RegistrationPaymentCompleted, u.RegistrationStatus)
}
