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

type Milestone struct {
	CompletedHeight *uint64
	Title           string `gorm:"size:128"`
	Status          string `gorm:"index;size:16"`
	DeliverableHash []byte `gorm:"size:32"`
	FundingAmount   types.Uint64
	ID              uint64 `gorm:"primarykey;autoIncrement:false"`
	ProposalID      uint64 `gorm:"index"`
}

func (Milestone) TableName() string {
	return "milestone"
}

func MilestoneFromContract(m contract.Milestone) Milestone {
	ret := Milestone{
		ID:            m.ID,
		ProposalID:    m.ProposalID,
		Title:         m.Title,
		FundingAmount: types.Uint64(m.FundingAmount),
		Status:        m.Status.String(),
	}
	if hash, ok := m.DeliverableHash.Get(); ok {
		ret.DeliverableHash = hash[:]
	}
	if completedAt, ok := m.CompletedAt.Get(); ok {
		ret.CompletedHeight = &completedAt
	}
	return ret
}

func (m *Milestone) ToContract() (contract.Milestone, error) {
	ret := contract.Milestone{
		ID:              m.ID,
		ProposalID:      m.ProposalID,
		Title:           m.Title,
		FundingAmount:   uint64(m.FundingAmount),
		DeliverableHash: contract.None[contract.Hash](),
		CompletedAt:     contract.None[uint64](),
	}
	status, err := contract.ParseMilestoneStatus(m.Status)
	if err != nil {
		return ret, err
	}
	ret.Status = status
	if len(m.DeliverableHash) > 0 {
		hash, err := contract.NewHash(m.DeliverableHash)
		if err != nil {
			return ret, err
		}
		ret.DeliverableHash = contract.Some(hash)
	}
	if m.CompletedHeight != nil {
		ret.CompletedAt = contract.Some(*m.CompletedHeight)
	}
	return ret, nil
}
