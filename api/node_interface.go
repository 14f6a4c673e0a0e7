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

package api

import (
	"encoding/json"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database/plugin/metadata"
	"github.com/blinklabs-io/desci/ledger"
)

// Node is the interface that the API server uses to reach the ledger, the
// mempool and the query index. This decouples the HTTP server from the
// concrete node and enables testing with mock implementations.
type Node interface {
	// SubmitCall validates a call and queues it for the next block
	SubmitCall(call ledger.Call) error

	// CallReceipt returns the stored result of an applied call, or nil
	CallReceipt(id string) (*ledger.CallResult, error)

	// CallPending reports whether a call is waiting in the mempool
	CallPending(id string) bool

	// RecentReceipts returns the latest applied calls, newest first
	RecentReceipts(limit int) ([]*ledger.CallResult, error)

	Height() uint64
	Balance(account contract.Account) (uint64, error)

	// Query runs a read-only contract method
	Query(method string, args json.RawMessage) (json.RawMessage, error)

	ListProposals(filter metadata.ProposalFilter) ([]contract.Proposal, error)
	ListMilestones(proposalID uint64) ([]contract.Milestone, error)
	ListContributions(filter metadata.ContributionFilter) ([]contract.Contribution, error)
	ListTokensByOwner(
		owner contract.Account,
		page metadata.Pagination,
	) ([]contract.ImpactToken, error)
}
