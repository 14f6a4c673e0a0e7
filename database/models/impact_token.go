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

import "github.com/blinklabs-io/desci/contract"

type ImpactToken struct {
	Owner string `gorm:"index;size:128"`
	URI   string `gorm:"size:256"`
	ID    uint64 `gorm:"primarykey;autoIncrement:false"`
}

func (ImpactToken) TableName() string {
	return "impact_token"
}

func ImpactTokenFromContract(t contract.ImpactToken) ImpactToken {
	return ImpactToken{
		ID:    t.ID,
		Owner: string(t.Owner),
		URI:   t.URI,
	}
}

func (t *ImpactToken) ToContract() contract.ImpactToken {
	return contract.ImpactToken{
		ID:    t.ID,
		Owner: contract.Account(t.Owner),
		URI:   t.URI,
	}
}
