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

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
)

const (
	// VotingPeriod is the length of a proposal voting window in ledger height units (roughly one day)
	VotingPeriod uint64 = 144
	// ImpactTokenURI is the metadata URI attached to every minted impact token
	ImpactTokenURI = "ipfs://desci/impact-token.json"
	// HashSize is the fixed length of a milestone deliverable hash
	HashSize = 32
)

// Account is an opaque host-provided caller identity
type Account string

func (a Account) String() string {
	return string(a)
}

// Hash is a fixed-length deliverable digest
type Hash [HashSize]byte

func NewHash(data []byte) (Hash, error) {
	var h Hash
	if len(data) != HashSize {
		return h, fmt.Errorf(
			"invalid hash length: expected %d bytes, got %d",
			HashSize,
			len(data),
		)
	}
	copy(h[:], data)
	return h, nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	tmp, err := NewHash(raw)
	if err != nil {
		return err
	}
	*h = tmp
	return nil
}

// Optional is an explicitly tagged present/absent value
type Optional[T any] struct {
	cbor.StructAsArray
	Present bool
	Value   T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Present
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Present {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

type ProposalStatus uint8

const (
	ProposalStatusProposed ProposalStatus = iota
	// ProposalStatusVoting is declared but never assigned
	ProposalStatusVoting
	ProposalStatusFunded
	// ProposalStatusRejected is declared but never assigned
	ProposalStatusRejected
)

var proposalStatusNames = map[ProposalStatus]string{
	ProposalStatusProposed: "PROPOSED",
	ProposalStatusVoting:   "VOTING",
	ProposalStatusFunded:   "FUNDED",
	ProposalStatusRejected: "REJECTED",
}

func (s ProposalStatus) String() string {
	if name, ok := proposalStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ProposalStatus(%d)", uint8(s))
}

func ParseProposalStatus(name string) (ProposalStatus, error) {
	for status, statusName := range proposalStatusNames {
		if statusName == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal status: %q", name)
}

func (s ProposalStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ProposalStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseProposalStatus(name)
	if err != nil {
		return err
	}
	*s = tmp
	return nil
}

type MilestoneStatus uint8

const (
	MilestoneStatusPending MilestoneStatus = iota
	MilestoneStatusSubmitted
	MilestoneStatusApproved
)

var milestoneStatusNames = map[MilestoneStatus]string{
	MilestoneStatusPending:   "PENDING",
	MilestoneStatusSubmitted: "SUBMITTED",
	MilestoneStatusApproved:  "APPROVED",
}

func (s MilestoneStatus) String() string {
	if name, ok := milestoneStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MilestoneStatus(%d)", uint8(s))
}

func (s MilestoneStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func ParseMilestoneStatus(name string) (MilestoneStatus, error) {
	for status, statusName := range milestoneStatusNames {
		if statusName == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown milestone status: %q", name)
}

func (s *MilestoneStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseMilestoneStatus(name)
	if err != nil {
		return err
	}
	*s = tmp
	return nil
}

// ResearcherProfile is created once on registration. Verified and ReputationScore
// have no mutator.
type ResearcherProfile struct {
	cbor.StructAsArray
	Name            string `json:"name"`
	Institution     string `json:"institution"`
	Verified        bool   `json:"verified"`
	ReputationScore uint64 `json:"reputationScore"`
}

type Proposal struct {
	cbor.StructAsArray
	ID               uint64         `json:"id"`
	Researcher       Account        `json:"researcher"`
	Title            string         `json:"title"`
	Abstract         string         `json:"abstract"`
	Category         string         `json:"category"`
	FundingRequested uint64         `json:"fundingRequested"`
	FundingReceived  uint64         `json:"fundingReceived"`
	Status           ProposalStatus `json:"status"`
	VotesFor         uint64         `json:"votesFor"`
	VotesAgainst     uint64         `json:"votesAgainst"`
	CreatedAt        uint64         `json:"createdAt"`
	VotingEnds       uint64         `json:"votingEnds"`
}

type Milestone struct {
	cbor.StructAsArray
	ID              uint64           `json:"id"`
	ProposalID      uint64           `json:"proposalId"`
	Title           string           `json:"title"`
	FundingAmount   uint64           `json:"fundingAmount"`
	Status          MilestoneStatus  `json:"status"`
	DeliverableHash Optional[Hash]   `json:"deliverableHash"`
	CompletedAt     Optional[uint64] `json:"completedAt"`
}

type Contribution struct {
	cbor.StructAsArray
	ID         uint64  `json:"id"`
	Donor      Account `json:"donor"`
	ProposalID uint64  `json:"proposalId"`
	Amount     uint64  `json:"amount"`
	TokenID    uint64  `json:"tokenId"`
	Timestamp  uint64  `json:"timestamp"`
}

type ImpactToken struct {
	cbor.StructAsArray
	ID    uint64  `json:"id"`
	Owner Account `json:"owner"`
	URI   string  `json:"uri"`
}
