// Copyright 2024 Blink Labs Software
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

package ledger

import (
	"fmt"
	"slices"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database/models"
)

// The metadata index mirrors contract records touched by a call. Index writes
// use the call transaction so they commit or roll back with the state.

func (cc *callContext) indexResearcher(account contract.Account) error {
	opt, err := cc.state.ResearcherProfile(account)
	if err != nil {
		return err
	}
	profile, ok := opt.Get()
	if !ok {
		return fmt.Errorf("researcher %s missing after write", account)
	}
	row := models.ResearcherFromContract(account, profile, cc.host.Height())
	return cc.ls.db.Metadata().IndexResearcher(&row, cc.txn.Metadata())
}

func (cc *callContext) indexProposal(id uint64) (contract.Proposal, error) {
	opt, err := cc.state.Proposal(id)
	if err != nil {
		return contract.Proposal{}, err
	}
	proposal, ok := opt.Get()
	if !ok {
		return proposal, fmt.Errorf("proposal %d missing after write", id)
	}
	row := models.ProposalFromContract(proposal)
	if err := cc.ls.db.Metadata().IndexProposal(&row, cc.txn.Metadata()); err != nil {
		return proposal, err
	}
	return proposal, nil
}

func (cc *callContext) indexMilestone(id uint64) (contract.Milestone, error) {
	opt, err := cc.state.Milestone(id)
	if err != nil {
		return contract.Milestone{}, err
	}
	milestone, ok := opt.Get()
	if !ok {
		return milestone, fmt.Errorf("milestone %d missing after write", id)
	}
	row := models.MilestoneFromContract(milestone)
	if err := cc.ls.db.Metadata().IndexMilestone(&row, cc.txn.Metadata()); err != nil {
		return milestone, err
	}
	return milestone, nil
}

func (cc *callContext) indexContribution(id uint64) (contract.Contribution, error) {
	opt, err := cc.state.Contribution(id)
	if err != nil {
		return contract.Contribution{}, err
	}
	contribution, ok := opt.Get()
	if !ok {
		return contribution, fmt.Errorf("contribution %d missing after write", id)
	}
	row := models.ContributionFromContract(contribution)
	if err := cc.ls.db.Metadata().IndexContribution(&row, cc.txn.Metadata()); err != nil {
		return contribution, err
	}
	return contribution, nil
}

// indexTouchedTokens mirrors every token whose registry entry changed during
// the call
func (cc *callContext) indexTouchedTokens() error {
	ids := slices.Clone(cc.host.tokensTouched)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		opt, err := cc.state.Token(id)
		if err != nil {
			return err
		}
		token, ok := opt.Get()
		if !ok {
			return fmt.Errorf("token %d missing after write", id)
		}
		row := models.ImpactTokenFromContract(token)
		if err := cc.ls.db.Metadata().IndexImpactToken(&row, cc.txn.Metadata()); err != nil {
			return err
		}
	}
	return nil
}
