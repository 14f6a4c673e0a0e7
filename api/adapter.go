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
	"github.com/blinklabs-io/desci/mempool"
)

// NodeAdapter wraps the ledger state and mempool to implement the Node
// interface
type NodeAdapter struct {
	ledgerState *ledger.LedgerState
	mempool     *mempool.Mempool
}

// NewNodeAdapter creates a NodeAdapter. Panics if either dependency is nil.
func NewNodeAdapter(
	ls *ledger.LedgerState,
	mp *mempool.Mempool,
) *NodeAdapter {
	if ls == nil {
		panic("NewNodeAdapter: LedgerState must not be nil")
	}
	if mp == nil {
		panic("NewNodeAdapter: Mempool must not be nil")
	}
	return &NodeAdapter{
		ledgerState: ls,
		mempool:     mp,
	}
}

func (a *NodeAdapter) metadata() metadata.MetadataStore {
	return a.ledgerState.Database().Metadata()
}

func (a *NodeAdapter) SubmitCall(call ledger.Call) error {
	return a.mempool.AddCall(call)
}

func (a *NodeAdapter) CallReceipt(id string) (*ledger.CallResult, error) {
	return a.ledgerState.Receipt(id)
}

func (a *NodeAdapter) CallPending(id string) bool {
	_, ok := a.mempool.GetCall(id)
	return ok
}

func (a *NodeAdapter) RecentReceipts(limit int) ([]*ledger.CallResult, error) {
	receipts, err := a.metadata().ListCallReceipts(limit, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]*ledger.CallResult, 0, len(receipts))
	for i := range receipts {
		ret = append(ret, ledger.CallResultFromReceipt(&receipts[i]))
	}
	return ret, nil
}

func (a *NodeAdapter) Height() uint64 {
	return a.ledgerState.Height()
}

func (a *NodeAdapter) Balance(account contract.Account) (uint64, error) {
	return a.ledgerState.Balance(account)
}

func (a *NodeAdapter) Query(
	method string,
	args json.RawMessage,
) (json.RawMessage, error) {
	return a.ledgerState.Query(method, args)
}

func (a *NodeAdapter) ListProposals(
	filter metadata.ProposalFilter,
) ([]contract.Proposal, error) {
	rows, err := a.metadata().ListProposals(filter, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]contract.Proposal, 0, len(rows))
	for i := range rows {
		proposal, err := rows[i].ToContract()
		if err != nil {
			return nil, err
		}
		ret = append(ret, proposal)
	}
	return ret, nil
}

func (a *NodeAdapter) ListMilestones(
	proposalID uint64,
) ([]contract.Milestone, error) {
	rows, err := a.metadata().ListMilestones(proposalID, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]contract.Milestone, 0, len(rows))
	for i := range rows {
		milestone, err := rows[i].ToContract()
		if err != nil {
			return nil, err
		}
		ret = append(ret, milestone)
	}
	return ret, nil
}

func (a *NodeAdapter) ListContributions(
	filter metadata.ContributionFilter,
) ([]contract.Contribution, error) {
	rows, err := a.metadata().ListContributions(filter, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]contract.Contribution, 0, len(rows))
	for i := range rows {
		ret = append(ret, rows[i].ToContract())
	}
	return ret, nil
}

func (a *NodeAdapter) ListTokensByOwner(
	owner contract.Account,
	page metadata.Pagination,
) ([]contract.ImpactToken, error) {
	rows, err := a.metadata().ListTokensByOwner(string(owner), page, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]contract.ImpactToken, 0, len(rows))
	for i := range rows {
		ret = append(ret, rows[i].ToContract())
	}
	return ret, nil
}
