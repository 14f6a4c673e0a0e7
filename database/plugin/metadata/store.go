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

package metadata

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/blinklabs-io/desci/database/models"
	"github.com/blinklabs-io/desci/database/plugin"
	"github.com/blinklabs-io/desci/database/types"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination selects a 1-based page of results
type Pagination struct {
	Page  int
	Count int
}

// OffsetLimit returns the normalized query offset and limit
func (p Pagination) OffsetLimit() (int, int) {
	count := p.Count
	if count <= 0 {
		count = DefaultPageSize
	}
	count = min(count, MaxPageSize)
	page := max(p.Page, 1)
	return (page - 1) * count, count
}

// ProposalFilter narrows a proposal listing. Empty fields match everything.
type ProposalFilter struct {
	Status     string
	Researcher string
	Category   string
	Pagination
}

// ContributionFilter narrows a contribution listing. A zero ProposalID and an
// empty Donor match everything.
type ContributionFilter struct {
	Donor      string
	ProposalID uint64
	Pagination
}

// MetadataStore is the query index kept alongside the contract state. All
// methods accept a nil txn to run outside of a transaction.
type MetadataStore interface {
	plugin.Plugin

	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Index updates
	IndexResearcher(*models.Researcher, types.Txn) error
	IndexProposal(*models.Proposal, types.Txn) error
	IndexMilestone(*models.Milestone, types.Txn) error
	IndexContribution(*models.Contribution, types.Txn) error
	IndexImpactToken(*models.ImpactToken, types.Txn) error
	SetCallReceipt(*models.CallReceipt, types.Txn) error

	// Queries
	GetCallReceipt(string, types.Txn) (*models.CallReceipt, error)
	ListCallReceipts(int, types.Txn) ([]models.CallReceipt, error)
	ListProposals(ProposalFilter, types.Txn) ([]models.Proposal, error)
	ListMilestones(uint64, types.Txn) ([]models.Milestone, error)
	ListContributions(ContributionFilter, types.Txn) ([]models.Contribution, error)
	ListTokensByOwner(string, Pagination, types.Txn) ([]models.ImpactToken, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
