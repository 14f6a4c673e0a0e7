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

// VoteOnProposal adds one vote to the proposal tally. Any account may vote any
// number of times while the window is open, and tallies never change the status.
func (s *State) VoteOnProposal(proposalID uint64, inFavor bool) error {
	proposal, err := s.mustProposal(proposalID)
	if err != nil {
		return err
	}
	if s.host.Height() >= proposal.VotingEnds {
		return ErrVotingEnded
	}
	if inFavor {
		proposal.VotesFor++
	} else {
		proposal.VotesAgainst++
	}
	return s.saveProposal(proposal)
}
