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

// AddMilestone creates a pending payout tranche for a proposal. Only the
// proposal researcher may add milestones. Nothing ties the sum of milestone
// amounts to the funding the proposal actually received.
func (s *State) AddMilestone(
	proposalID uint64,
	title string,
	fundingAmount uint64,
) (uint64, error) {
	proposal, err := s.mustProposal(proposalID)
	if err != nil {
		return 0, err
	}
	if s.host.Caller() != proposal.Researcher {
		return 0, ErrNotAuthorized
	}
	id, err := s.nextID(CounterMilestone)
	if err != nil {
		return 0, err
	}
	milestone := &Milestone{
		ID:              id,
		ProposalID:      proposalID,
		Title:           title,
		FundingAmount:   fundingAmount,
		Status:          MilestoneStatusPending,
		DeliverableHash: None[Hash](),
		CompletedAt:     None[uint64](),
	}
	if err := s.saveMilestone(milestone); err != nil {
		return 0, err
	}
	return id, nil
}

// SubmitMilestoneDeliverable records the deliverable hash and marks the
// milestone submitted. Only the parent proposal researcher may submit. Any
// status is accepted, so resubmitting an approved milestone reopens it for
// approval and a second payout.
func (s *State) SubmitMilestoneDeliverable(milestoneID uint64, hash Hash) error {
	milestone, err := s.mustMilestone(milestoneID)
	if err != nil {
		return err
	}
	proposal, err := s.mustProposal(milestone.ProposalID)
	if err != nil {
		return err
	}
	if s.host.Caller() != proposal.Researcher {
		return ErrNotAuthorized
	}
	milestone.Status = MilestoneStatusSubmitted
	milestone.DeliverableHash = Some(hash)
	return s.saveMilestone(milestone)
}

// ApproveMilestone pays the milestone amount out of escrow to the researcher.
// Any caller may approve a submitted milestone.
func (s *State) ApproveMilestone(milestoneID uint64) error {
	milestone, err := s.mustMilestone(milestoneID)
	if err != nil {
		return err
	}
	if milestone.Status != MilestoneStatusSubmitted {
		return ErrInvalidStatus
	}
	proposal, err := s.mustProposal(milestone.ProposalID)
	if err != nil {
		return err
	}
	if err := s.host.Transfer(
		s.host.Self(),
		proposal.Researcher,
		milestone.FundingAmount,
	); err != nil {
		return fmt.Errorf("milestone payout: %w", err)
	}
	milestone.Status = MilestoneStatusApproved
	milestone.CompletedAt = Some(s.host.Height())
	return s.saveMilestone(milestone)
}

func (s *State) Milestone(id uint64) (Optional[Milestone], error) {
	var milestone Milestone
	found, err := s.load(idKey(prefixMilestone, id), &milestone)
	if err != nil || !found {
		return None[Milestone](), err
	}
	return Some(milestone), nil
}

func (s *State) mustMilestone(id uint64) (*Milestone, error) {
	opt, err := s.Milestone(id)
	if err != nil {
		return nil, err
	}
	milestone, ok := opt.Get()
	if !ok {
		return nil, ErrNotFound
	}
	return &milestone, nil
}

func (s *State) saveMilestone(m *Milestone) error {
	return s.save(idKey(prefixMilestone, m.ID), m)
}
