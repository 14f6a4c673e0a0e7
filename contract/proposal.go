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

// SubmitProposal stores a new proposal from the caller and returns its id.
// The caller does not need a researcher profile.
func (s *State) SubmitProposal(
	title string,
	abstract string,
	category string,
	fundingRequested uint64,
) (uint64, error) {
	id, err := s.nextID(CounterProposal)
	if err != nil {
		return 0, err
	}
	now := s.host.Height()
	proposal := &Proposal{
		ID:               id,
		Researcher:       s.host.Caller(),
		Title:            title,
		Abstract:         abstract,
		Category:         category,
		FundingRequested: fundingRequested,
		FundingReceived:  0,
		Status:           ProposalStatusProposed,
		VotesFor:         0,
		VotesAgainst:     0,
		CreatedAt:        now,
		VotingEnds:       now + VotingPeriod,
	}
	if err := s.saveProposal(proposal); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *State) Proposal(id uint64) (Optional[Proposal], error) {
	var proposal Proposal
	found, err := s.load(idKey(prefixProposal, id), &proposal)
	if err != nil || !found {
		return None[Proposal](), err
	}
	return Some(proposal), nil
}

// mustProposal loads a proposal or fails with ErrNotFound
func (s *State) mustProposal(id uint64) (*Proposal, error) {
	opt, err := s.Proposal(id)
	if err != nil {
		return nil, err
	}
	proposal, ok := opt.Get()
	if !ok {
		return nil, ErrNotFound
	}
	return &proposal, nil
}

func (s *State) saveProposal(p *Proposal) error {
	return s.save(idKey(prefixProposal, p.ID), p)
}
