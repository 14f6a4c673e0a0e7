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

type Contribution struct {
	Donor      string `gorm:"index;size:128"`
	Amount     types.Uint64
	ID         uint64 `gorm:"primarykey;autoIncrement:false"`
	ProposalID uint64 `gorm:"index"`
	TokenID    uint64 `gorm:"uniqueIndex"`
	Height     uint64 `gorm:"index"`
}

func (Contribution) TableName() string {
	return "contribution"
}

func ContributionFromContract(c contract.Contribution) Contribution {
	return Contribution{
		ID:         c.ID,
		Donor:      string(c.Donor),
		ProposalID: c.ProposalID,
		Amount:     types.Uint64(c.Amount),
		TokenID:    c.TokenID,
		Height:     c.Timestamp,
	}
}

func (c *Contribution) ToContract() contract.Contribution {
	return contract.Contribution{
		ID:         c.ID,
		Donor:      contract.Account(c.Donor),
		ProposalID: c.ProposalID,
		Amount:     uint64(c.Amount),
		TokenID:    c.TokenID,
		Timestamp:  c.Height,
	}
}
