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

package contract

import "fmt"

// Contribute moves amount from the caller into escrow, mints an impact token for
// the caller and records the contribution against the proposal. The proposal flips
// to FUNDED once the received total reaches the requested amount.
func (s *State) Contribute(proposalID uint64, amount uint64) (uint64, error) {
	proposal, err := s.mustProposal(proposalID)
	if err != nil {
		return 0, err
	}
	// Arithmetic overflow aborts the call like any other runtime failure
	if proposal.FundingReceived+amount < proposal.FundingReceived {
		return 0, fmt.Errorf(
			"funding total overflow on proposal %d",
			proposalID,
		)
	}
	caller := s.host.Caller()
	if err := s.host.Transfer(caller, s.host.Self(), amount); err != nil {
		return 0, fmt.Errorf("escrow deposit: %w", err)
	}
	tokenID, err := s.mintToken(caller)
	if err != nil {
		return 0, err
	}
	contributionID, err := s.nextID(CounterContribution)
	if err != nil {
		return 0, err
	}
	contribution := &Contribution{
		ID:         contributionID,
		Donor:      caller,
		ProposalID: proposalID,
		Amount:     amount,
		TokenID:    tokenID,
		Timestamp:  s.host.Height(),
	}
	if err := s.save(idKey(prefixContribution, contributionID), contribution); err != nil {
		return 0, err
	}
	proposal.FundingReceived += amount
	if proposal.FundingReceived >= proposal.FundingRequested {
		proposal.Status = ProposalStatusFunded
	}
	if err := s.saveProposal(proposal); err != nil {
		return 0, err
	}
	return contributionID, nil
}

func (s *State) Contribution(id uint64) (Optional[Contribution], error) {
	var contribution Contribution
	found, err := s.load(idKey(prefixContribution, id), &contribution)
	if err != nil || !found {
		return None[Contribution](), err
	}
	return Some(contribution), nil
}
