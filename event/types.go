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

package event

import "time"

const (
	// CallAppliedEventType is published once per applied call, successful or not
	CallAppliedEventType = EventType("ledger.call_applied")
	// BlockEventType is published after the driver advances the ledger height
	BlockEventType = EventType("ledger.block")

	ResearcherRegisteredEventType = EventType("contract.researcher_registered")
	ProposalSubmittedEventType    = EventType("contract.proposal_submitted")
	ContributionEventType         = EventType("contract.contribution")

	// ProposalFundedEventType is published when a contribution first brings a
	// proposal to its requested amount
	ProposalFundedEventType = EventType("contract.proposal_funded")

	MilestoneSubmittedEventType = EventType("contract.milestone_submitted")
	MilestoneApprovedEventType  = EventType("contract.milestone_approved")
	TokenTransferredEventType   = EventType("contract.token_transferred")
)

// ContractEventTypes lists the event types emitted for contract state changes
var ContractEventTypes = []EventType{
	ResearcherRegisteredEventType,
	ProposalSubmittedEventType,
	ContributionEventType,
	ProposalFundedEventType,
	MilestoneSubmittedEventType,
	MilestoneApprovedEventType,
	TokenTransferredEventType,
}

type CallAppliedEvent struct {
	CallID    string `json:"call_id"`
	Caller    string `json:"caller"`
	Method    string `json:"method"`
	Error     string `json:"error,omitempty"`
	Height    uint64 `json:"height"`
	Fee       uint64 `json:"fee"`
	ErrorCode uint32 `json:"error_code,omitempty"`
	Success   bool   `json:"success"`
}

type BlockEvent struct {
	Timestamp time.Time `json:"timestamp"`
	CallIDs   []string  `json:"call_ids"`
	Height    uint64    `json:"height"`
	Failed    int       `json:"failed"`
}

type ResearcherRegisteredEvent struct {
	Account     string `json:"account"`
	Name        string `json:"name"`
	Institution string `json:"institution"`
}

type ProposalSubmittedEvent struct {
	Researcher       string `json:"researcher"`
	Title            string `json:"title"`
	ProposalID       uint64 `json:"proposal_id"`
	FundingRequested uint64 `json:"funding_requested"`
	VotingEnds       uint64 `json:"voting_ends"`
}

type ContributionEvent struct {
	Donor          string `json:"donor"`
	ContributionID uint64 `json:"contribution_id"`
	ProposalID     uint64 `json:"proposal_id"`
	Amount         uint64 `json:"amount"`
	TokenID        uint64 `json:"token_id"`
}

type ProposalFundedEvent struct {
	ProposalID       uint64 `json:"proposal_id"`
	FundingRequested uint64 `json:"funding_requested"`
	FundingReceived  uint64 `json:"funding_received"`
}

type MilestoneSubmittedEvent struct {
	DeliverableHash string `json:"deliverable_hash"`
	MilestoneID     uint64 `json:"milestone_id"`
	ProposalID      uint64 `json:"proposal_id"`
}

type MilestoneApprovedEvent struct {
	Researcher  string `json:"researcher"`
	MilestoneID uint64 `json:"milestone_id"`
	ProposalID  uint64 `json:"proposal_id"`
	Amount      uint64 `json:"amount"`
}

type TokenTransferredEvent struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}
