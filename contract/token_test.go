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
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/contract"
)

func TestTokenQueriesEmpty(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.read(func(s *contract.State) error {
		last, err := s.LastTokenID()
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(0), last)
		owner, err := s.TokenOwner(1)
		if err != nil {
			return err
		}
		_, ok := owner.Get()
		assert.False(t, ok)
		_, err = s.TokenURI(1)
		assert.ErrorIs(t, err, contract.ErrNotFound)
		return nil
	}))
}

func TestTokenTransfer(t *testing.T) {
	h := newHarness(t)
	h.fund(bob, 10)
	id := h.submitProposal(alice, 1000)
	contributionID, err := h.contribute(bob, id, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), contributionID)

	var uri string
	require.NoError(t, h.read(func(s *contract.State) error {
		var err error
		uri, err = s.TokenURI(1)
		return err
	}))
	assert.Equal(t, contract.ImpactTokenURI, uri)

	transfer := func(caller, from, to contract.Account) error {
		return h.call(caller, func(s *contract.State) error {
			return s.TransferToken(1, from, to)
		})
	}

	// The caller must be the sender
	assert.ErrorIs(t, transfer(charlie, bob, charlie), contract.ErrNotAuthorized)
	// The sender must own the token
	assert.ErrorIs(t, transfer(charlie, charlie, alice), contract.ErrNotAuthorized)

	require.NoError(t, transfer(bob, bob, charlie))
	assert.Equal(t, charlie, h.host.owners[1])
	require.NoError(t, h.read(func(s *contract.State) error {
		owner, err := s.TokenOwner(1)
		if err != nil {
			return err
		}
		got, _ := owner.Get()
		assert.Equal(t, charlie, got)
		token, err := s.Token(1)
		if err != nil {
			return err
		}
		record, ok := token.Get()
		require.True(t, ok)
		assert.Equal(t, charlie, record.Owner)
		return nil
	}))
}

func TestUtilityCounter(t *testing.T) {
	h := newHarness(t)
	err := h.call(alice, func(s *contract.State) error {
		_, err := s.Decrement()
		return err
	})
	assert.ErrorIs(t, err, contract.ErrUnderflow)

	for want := uint64(1); want <= 3; want++ {
		require.NoError(t, h.call(alice, func(s *contract.State) error {
			got, err := s.Increment()
			assert.Equal(t, want, got)
			return err
		}))
	}
	require.NoError(t, h.call(bob, func(s *contract.State) error {
		got, err := s.Decrement()
		assert.Equal(t, uint64(2), got)
		return err
	}))
	require.NoError(t, h.read(func(s *contract.State) error {
		got, err := s.GetCounter()
		assert.Equal(t, uint64(2), got)
		return err
	}))
}

func TestErrorCodes(t *testing.T) {
	testDefs := []struct {
		err  *contract.Error
		code uint32
	}{
		{contract.ErrNotAuthorized, 100},
		{contract.ErrNotFound, 101},
		{contract.ErrAlreadyExists, 102},
		{contract.ErrInvalidStatus, 103},
		{contract.ErrInsufficientFunds, 104},
		{contract.ErrMilestoneNotApproved, 105},
		{contract.ErrProposalNotFunded, 106},
		{contract.ErrVotingEnded, 107},
		{contract.ErrUnderflow, 0},
	}
	for _, testDef := range testDefs {
		assert.Equal(t, testDef.code, testDef.err.Code)
		got, ok := contract.ErrorFromCode(testDef.code)
		require.True(t, ok)
		assert.Same(t, testDef.err, got)
		wrapped := fmt.Errorf("outer: %w", testDef.err)
		kind, ok := contract.AsError(wrapped)
		require.True(t, ok)
		assert.Same(t, testDef.err, kind)
	}
	_, ok := contract.ErrorFromCode(999)
	assert.False(t, ok)
}

func TestMilestoneJSON(t *testing.T) {
	m := contract.Milestone{
		ID:              3,
		ProposalID:      1,
		Title:           "Analysis",
		FundingAmount:   250,
		Status:          contract.MilestoneStatusSubmitted,
		DeliverableHash: contract.Some(testHash(0x0f)),
		CompletedAt:     contract.None[uint64](),
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "SUBMITTED", raw["status"])
	assert.Nil(t, raw["completedAt"])
	assert.Equal(t, testHash(0x0f).String(), raw["deliverableHash"])

	var decoded contract.Milestone
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.DeliverableHash, decoded.DeliverableHash)
	assert.Equal(t, m.Status, decoded.Status)
}
