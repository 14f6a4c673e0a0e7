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

package models

import (
	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database/types"
)

// Proposal is the query index row for a proposal. Amounts are stored as
// decimal strings and are not meant for SQL arithmetic.
type Proposal struct {
	Researcher       string `gorm:"index;size:128"`
	Title            string `gorm:"size:128"`
	Abstract         string `gorm:"size:512"`
	Category         string `gorm:"index;size:64"`
	Status           string `gorm:"index;size:16"`
	FundingRequested types.Uint64
	FundingReceived  types.Uint64
	VotesFor         types.Uint64
	VotesAgainst     types.Uint64
	ID               uint64 `gorm:"primarykey;autoIncrement:false"`
	CreatedHeight    uint64 `gorm:"index"`
	VotingEnds       uint64
}

func (Proposal) TableName() string {
	return "proposal"
}

func ProposalFromContract(p contract.Proposal) Proposal {
	return Proposal{
		ID:               p.ID,
		Researcher:       string(p.Researcher),
		Title:            p.Title,
		Abstract:         p.Abstract,
		Category:         p.Category,
		FundingRequested: types.Uint64(p.FundingRequested),
		FundingReceived:  types.Uint64(p.FundingReceived),
		Status:           p.Status.String(),
		VotesFor:         types.Uint64(p.VotesFor),
		VotesAgainst:     types.Uint64(p.VotesAgainst),
		CreatedHeight:    p.CreatedAt,
		VotingEnds:       p.VotingEnds,
	}
}

func (p *Proposal) ToContract() (contract.Proposal, error) {
	status, err := contract.ParseProposalStatus(p.Status)
	if err != nil {
		return contract.Proposal{}, err
	}
	return contract.Proposal{
		ID:               p.ID,
		Researcher:       contract.Account(p.Researcher),
		Title:            p.Title,
		Abstract:         p.Abstract,
		Category:         p.Category,
		FundingRequested: uint64(p.FundingRequested),
		FundingReceived:  uint64(p.FundingReceived),
		Status:           status,
		VotesFor:         uint64(p.VotesFor),
		VotesAgainst:     uint64(p.VotesAgainst),
		CreatedAt:        p.CreatedHeight,
		VotingEnds:       p.VotingEnds,
	}, nil
}
