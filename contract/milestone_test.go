// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/contract"
)

func testHash(b byte) contract.Hash {
	var h contract.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func (h *harness) addMilestone(
	caller contract.Account,
	proposalID uint64,
	amount uint64,
) (uint64, error) {
	h.t.Helper()
	var id uint64
	err := h.call(caller, func(s *contract.State) error {
		var err error
		id, err = s.AddMilestone(proposalID, "Sequencing run", amount)
		return err
	})
	return id, err
}

func (h *harness) submitDeliverable(
	caller contract.Account,
	milestoneID uint64,
	hash contract.Hash,
) error {
	h.t.Helper()
	return h.call(caller, func(s *contract.State) error {
		return s.SubmitMilestoneDeliverable(milestoneID, hash)
	})
}

func (h *harness) approve(caller contract.Account, milestoneID uint64) error {
	h.t.Helper()
	return h.call(caller, func(s *contract.State) error {
		return s.ApproveMilestone(milestoneID)
	})
}

func TestAddMilestone(t *testing.T) {
	h := newHarness(t)
	id := h.submitProposal(alice, 1000)

	_, err := h.addMilestone(alice, 99, 100)
	assert.ErrorIs(t, err, contract.ErrNotFound)

	_, err = h.addMilestone(bob, id, 100)
	assert.ErrorIs(t, err, contract.ErrNotAuthorized)

	milestoneID, err := h.addMilestone(alice, id, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), milestoneID)

	m := h.milestone(milestoneID)
	assert.Equal(t, id, m.ProposalID)
	assert.Equal(t, "Sequencing run", m.Title)
	assert.Equal(t, uint64(100), m.FundingAmount)
	assert.Equal(t, contract.MilestoneStatusPending, m.Status)
	_, ok := m.DeliverableHash.Get()
	assert.False(t, ok)
	_, ok = m.CompletedAt.Get()
	assert.False(t, ok)
}

func TestMilestoneLifecycle(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 1000)
	id := h.submitProposal(alice, 1000)
	_, err := h.contribute(bob, id, 1000)
	require.NoError(t, err)
	milestoneID, err := h.addMilestone(alice, id, 400)
	require.NoError(t, err)

	// Approval requires a submitted deliverable
	assert.ErrorIs(t, h.approve(charlie, milestoneID), contract.ErrInvalidStatus)

	assert.ErrorIs(
		t,
		h.submitDeliverable(bob, milestoneID, testHash(0xab)),
		contract.ErrNotAuthorized,
	)
	assert.ErrorIs(
		t,
		h.submitDeliverable(alice, 55, testHash(0xab)),
		contract.ErrNotFound,
	)
	require.NoError(t, h.submitDeliverable(alice, milestoneID, testHash(0xab)))
	m := h.milestone(milestoneID)
	assert.Equal(t, contract.MilestoneStatusSubmitted, m.Status)
	hash, ok := m.DeliverableHash.Get()
	require.True(t, ok)
	assert.Equal(t, testHash(0xab), hash)

	// Any account may approve
	h.setHeight(300)
	require.NoError(t, h.approve(charlie, milestoneID))
	m = h.milestone(milestoneID)
	assert.Equal(t, contract.MilestoneStatusApproved, m.Status)
	completedAt, ok := m.CompletedAt.Get()
	require.True(t, ok)
	assert.Equal(t, uint64(300), completedAt)
	assert.Equal(t, uint64(400), h.host.balances[alice])
	assert.Equal(t, uint64(600), h.host.balances[escrow])

	// Approving twice pays nothing more
	assert.ErrorIs(t, h.approve(charlie, milestoneID), contract.ErrInvalidStatus)
	assert.Equal(t, uint64(400), h.host.balances[alice])

	assert.ErrorIs(t, h.approve(charlie, 77), contract.ErrNotFound)
}

func TestApproveMilestoneEscrowShort(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 100)
	id := h.submitProposal(alice, 1000)
	_, err := h.contribute(bob, id, 100)
	require.NoError(t, err)
	milestoneID, err := h.addMilestone(alice, id, 500)
	require.NoError(t, err)
	require.NoError(t, h.submitDeliverable(alice, milestoneID, testHash(1)))

	assert.ErrorIs(t, h.approve(bob, milestoneID), contract.ErrInsufficientFunds)
	m := h.milestone(milestoneID)
	assert.Equal(t, contract.MilestoneStatusSubmitted, m.Status)
	assert.Equal(t, uint64(100), h.host.balances[escrow])
	assert.Equal(t, uint64(0), h.host.balances[alice])
}

func TestMilestonePayoutDrawsOnSharedEscrow(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 1000)
	unfunded := h.submitProposal(alice, 1000)
	other := h.submitProposal(charlie, 1000)
	_, err := h.contribute(bob, other, 1000)
	require.NoError(t, err)

	// Escrow is shared, so a milestone on an unfunded proposal can be paid
	milestoneID, err := h.addMilestone(alice, unfunded, 700)
	require.NoError(t, err)
	require.NoError(t, h.submitDeliverable(alice, milestoneID, testHash(2)))
	require.NoError(t, h.approve(bob, milestoneID))
	assert.Equal(t, uint64(700), h.host.balances[alice])
	assert.Equal(t, uint64(300), h.host.balances[escrow])
}

func TestResubmitDeliverableAfterApproval(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 200)
	id := h.submitProposal(alice, 200)
	_, err := h.contribute(bob, id, 200)
	require.NoError(t, err)
	milestoneID, err := h.addMilestone(alice, id, 100)
	require.NoError(t, err)
	require.NoError(t, h.submitDeliverable(alice, milestoneID, testHash(3)))
	require.NoError(t, h.approve(bob, milestoneID))

	// Resubmission reopens the milestone for another payout
	require.NoError(t, h.submitDeliverable(alice, milestoneID, testHash(4)))
	m := h.milestone(milestoneID)
	assert.Equal(t, contract.MilestoneStatusSubmitted, m.Status)
	hash, _ := m.DeliverableHash.Get()
	assert.Equal(t, testHash(4), hash)
	require.NoError(t, h.approve(bob, milestoneID))
	assert.Equal(t, uint64(200), h.host.balances[alice])
}
