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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/blinklabs-io/desci/contract"
)

// Text bounds enforced before a call reaches the contract. Lengths count
// characters, not bytes.
const (
	MaxNameLength           = 50
	MaxInstitutionLength    = 100
	MaxTitleLength          = 100
	MaxAbstractLength       = 500
	MaxCategoryLength       = 50
	MaxMilestoneTitleLength = 100
)

type argValidator interface {
	validate() error
}

// decodeArgs strictly decodes call arguments into T and applies its bounds
// checks. Empty arguments decode as an empty object.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var ret T
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ret); err != nil {
		return ret, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if dec.More() {
		return ret, fmt.Errorf("%w: trailing data after arguments", ErrInvalidArgument)
	}
	if v, ok := any(&ret).(argValidator); ok {
		if err := v.validate(); err != nil {
			return ret, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	return ret, nil
}

func checkText(field string, value string, maxLen int) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("%s is not valid UTF-8", field)
	}
	if n := utf8.RuneCountInString(value); n > maxLen {
		return fmt.Errorf("%s exceeds %d characters (%d)", field, maxLen, n)
	}
	return nil
}

// checkASCII accepts printable ASCII only
func checkASCII(field string, value string, maxLen int) error {
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return fmt.Errorf("%s contains a non-printable or non-ASCII character", field)
		}
	}
	if len(value) > maxLen {
		return fmt.Errorf("%s exceeds %d characters (%d)", field, maxLen, len(value))
	}
	return nil
}

// NoArgs is used by methods without arguments
type NoArgs struct{}

type RegisterArgs struct {
	Name        string `json:"name"`
	Institution string `json:"institution"`
}

func (a *RegisterArgs) validate() error {
	return errors.Join(
		checkText("name", a.Name, MaxNameLength),
		checkText("institution", a.Institution, MaxInstitutionLength),
	)
}

type AccountArgs struct {
	Account contract.Account `json:"account"`
}

func (a *AccountArgs) validate() error {
	return ValidateAccount(a.Account)
}

type IDArgs struct {
	ID uint64 `json:"id"`
}

type SubmitProposalArgs struct {
	Title            string `json:"title"`
	Abstract         string `json:"abstract"`
	Category         string `json:"category"`
	FundingRequested uint64 `json:"fundingRequested"`
}

func (a *SubmitProposalArgs) validate() error {
	return errors.Join(
		checkText("title", a.Title, MaxTitleLength),
		checkText("abstract", a.Abstract, MaxAbstractLength),
		checkASCII("category", a.Category, MaxCategoryLength),
	)
}

type VoteArgs struct {
	ProposalID uint64 `json:"proposalId"`
	InFavor    bool   `json:"inFavor"`
}

type ContributeArgs struct {
	ProposalID uint64 `json:"proposalId"`
	Amount     uint64 `json:"amount"`
}

type AddMilestoneArgs struct {
	Title      string `json:"title"`
	ProposalID uint64 `json:"proposalId"`
	Amount     uint64 `json:"amount"`
}

func (a *AddMilestoneArgs) validate() error {
	return checkText("title", a.Title, MaxMilestoneTitleLength)
}

type SubmitDeliverableArgs struct {
	Hash        *contract.Hash `json:"hash"`
	MilestoneID uint64         `json:"milestoneId"`
}

func (a *SubmitDeliverableArgs) validate() error {
	if a.Hash == nil {
		return errors.New("hash is required")
	}
	return nil
}

type TransferArgs struct {
	From    contract.Account `json:"from"`
	To      contract.Account `json:"to"`
	TokenID uint64           `json:"tokenId"`
}

func (a *TransferArgs) validate() error {
	if err := ValidateAccount(a.From); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := ValidateAccount(a.To); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	return nil
}
