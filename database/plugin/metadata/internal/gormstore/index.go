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

package gormstore

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blinklabs-io/desci/database/models"
	"github.com/blinklabs-io/desci/database/plugin/metadata"
	"github.com/blinklabs-io/desci/database/types"
)

// upsert inserts the row or overwrites every column of the existing row
func (s *Store) upsert(row any, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(row)
	return result.Error
}

func (s *Store) IndexResearcher(r *models.Researcher, txn types.Txn) error {
	return s.upsert(r, txn)
}

func (s *Store) IndexProposal(p *models.Proposal, txn types.Txn) error {
	return s.upsert(p, txn)
}

func (s *Store) IndexMilestone(m *models.Milestone, txn types.Txn) error {
	return s.upsert(m, txn)
}

func (s *Store) IndexContribution(c *models.Contribution, txn types.Txn) error {
	return s.upsert(c, txn)
}

func (s *Store) IndexImpactToken(t *models.ImpactToken, txn types.Txn) error {
	return s.upsert(t, txn)
}

func (s *Store) SetCallReceipt(r *models.CallReceipt, txn types.Txn) error {
	return s.upsert(r, txn)
}

// GetCallReceipt returns nil without error when no receipt exists
func (s *Store) GetCallReceipt(
	id string,
	txn types.Txn,
) (*models.CallReceipt, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.CallReceipt{}
	result := db.First(ret, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return ret, nil
}

// ListCallReceipts returns the most recent receipts first
func (s *Store) ListCallReceipts(
	limit int,
	txn types.Txn,
) ([]models.CallReceipt, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	_, limit = metadata.Pagination{Count: limit}.OffsetLimit()
	var ret []models.CallReceipt
	result := db.Order("height desc").
		Order("applied_at desc").
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) ListProposals(
	filter metadata.ProposalFilter,
	txn types.Txn,
) ([]models.Proposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Model(&models.Proposal{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Researcher != "" {
		query = query.Where("researcher = ?", filter.Researcher)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	offset, limit := filter.OffsetLimit()
	var ret []models.Proposal
	result := query.Order("id asc").Offset(offset).Limit(limit).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) ListMilestones(
	proposalID uint64,
	txn types.Txn,
) ([]models.Milestone, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Milestone
	result := db.Where("proposal_id = ?", proposalID).
		Order("id asc").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) ListContributions(
	filter metadata.ContributionFilter,
	txn types.Txn,
) ([]models.Contribution, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Model(&models.Contribution{})
	if filter.ProposalID != 0 {
		query = query.Where("proposal_id = ?", filter.ProposalID)
	}
	if filter.Donor != "" {
		query = query.Where("donor = ?", filter.Donor)
	}
	offset, limit := filter.OffsetLimit()
	var ret []models.Contribution
	result := query.Order("id asc").Offset(offset).Limit(limit).Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) ListTokensByOwner(
	owner string,
	page metadata.Pagination,
	txn types.Txn,
) ([]models.ImpactToken, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	offset, limit := page.OffsetLimit()
	var ret []models.ImpactToken
	result := db.Where("owner = ?", owner).
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
