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

import "github.com/blinklabs-io/desci/database/types"

// CallReceipt records the outcome of an applied call. Result holds the JSON
// encoded return value of a successful call.
type CallReceipt struct {
	ID           string `gorm:"primarykey;size:36"`
	Caller       string `gorm:"index;size:128"`
	Method       string `gorm:"index;size:64"`
	ErrorMessage string `gorm:"size:512"`
	Result       []byte
	Fee          types.Uint64
	Height       uint64 `gorm:"index"`
	AppliedAt    int64
	ErrorCode    uint32
	Success      bool
}

func (CallReceipt) TableName() string {
	return "call_receipt"
}
