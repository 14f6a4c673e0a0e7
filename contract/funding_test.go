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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/contract"
)

func TestFundingThreshold(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 2000)
	id := h.submitProposal(alice, 1000)

	_, err := h.contribute(bob, id, 500)
	require.NoError(t, err)
	p := h.proposal(id)
	assert.Equal(t, uint64(500), p.FundingReceived)
	assert.Equal(t, contract.ProposalStatusProposed, p.Status)

	_, err = h.contribute(bob, id, 500)
	require.NoError(t, err)
	p = h.proposal(id)
	assert.Equal(t, uint64(1000), p.FundingReceived)
	assert.Equal(t, contract.ProposalStatusFunded, p.Status)

	// Contributions keep flowing after the proposal is funded
	_, err = h.contribute(bob, id, 1)
	require.NoError(t, err)
	p = h.proposal(id)
	assert.Equal(t, uint64(1001), p.FundingReceived)
	assert.Equal(t, contract.ProposalStatusFunded, p.Status)

	assert.Equal(t, uint64(1001), h.host.balances[escrow])
	assert.Equal(t, uint64(999), h.host.balances[bob])
}

func TestContributeRecordsAndMints(t *testing.T) {
	h := newHarness(t)
	h.setHeight(77)
	h.fund(bob, 100)
	h.fund(charlie, 100)
	id := h.submitProposal(alice, 1000)

	donors := []contract.Account{bob, charlie, bob}
	for i, donor := range donors {
		contributionID, err := h.contribute(donor, id, 10)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), contributionID)
	}

	seenTokens := make(map[uint64]bool)
	for i, donor := range donors {
		var opt contract.Optional[contract.Contribution]
		require.NoError(t, h.read(func(s *contract.State) error {
			var err error
			opt, err = s.Contribution(uint64(i + 1))
			return err
		}))
		c, ok := opt.Get()
		require.True(t, ok)
		assert.Equal(t, donor, c.Donor)
		assert.Equal(t, id, c.ProposalID)
		assert.Equal(t, uint64(10), c.Amount)
		assert.Equal(t, uint64(77), c.Timestamp)
		assert.False(t, seenTokens[c.TokenID], "token id reused")
		seenTokens[c.TokenID] = true

		var owner contract.Optional[contract.Account]
		require.NoError(t, h.read(func(s *contract.State) error {
			var err error
			owner, err = s.TokenOwner(c.TokenID)
			return err
		}))
		got, ok := owner.Get()
		require.True(t, ok)
		assert.Equal(t, donor, got)
	}

	var last uint64
	require.NoError(t, h.read(func(s *contract.State) error {
		var err error
		last, err = s.LastTokenID()
		return err
	}))
	assert.Equal(t, uint64(len(donors)), last)
}

func TestContributeInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 50)
	id := h.submitProposal(alice, 1000)

	_, err := h.contribute(bob, id, 100)
	assert.ErrorIs(t, err, contract.ErrInsufficientFunds)

	p := h.proposal(id)
	assert.Equal(t, uint64(0), p.FundingReceived)
	assert.Equal(t, uint64(50), h.host.balances[bob])
	assert.Empty(t, h.host.owners)

	// No id was consumed by the failed call
	contributionID, err := h.contribute(bob, id, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), contributionID)
}

func TestContributeUnknownProposal(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 50)
	_, err := h.contribute(bob, 9, 10)
	assert.ErrorIs(t, err, contract.ErrNotFound)
	assert.Equal(t, uint64(50), h.host.balances[bob])
}

func TestContributeOverflow(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, math.MaxUint64)
	h.fund(charlie, 10)
	id := h.submitProposal(alice, math.MaxUint64)
	_, err := h.contribute(bob, id, math.MaxUint64)
	require.NoError(t, err)

	_, err = h.contribute(charlie, id, 1)
	require.Error(t, err)
	_, isKind := contract.AsError(err)
	assert.False(t, isKind)
	assert.Equal(t, uint64(10), h.host.balances[charlie])
}
