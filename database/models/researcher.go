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

type Researcher struct {
	Account         string `gorm:"primarykey;size:128"`
	Name            string `gorm:"size:64"`
	Institution     string `gorm:"size:128"`
	ReputationScore types.Uint64
	RegisteredAt    uint64 `gorm:"index"`
	Verified        bool
}

func (Researcher) TableName() string {
	return "researcher"
}

func ResearcherFromContract(
	account contract.Account,
	profile contract.ResearcherProfile,
	height uint64,
) Researcher {
	return Researcher{
		Account:         string(account),
		Name:            profile.Name,
		Institution:     profile.Institution,
		Verified:        profile.Verified,
		ReputationScore: types.Uint64(profile.ReputationScore),
		RegisteredAt:    height,
	}
}

func (r *Researcher) ToContract() contract.ResearcherProfile {
	return contract.ResearcherProfile{
		Name:            r.Name,
		Institution:     r.Institution,
		Verified:        r.Verified,
		ReputationScore: uint64(r.ReputationScore),
	}
}
