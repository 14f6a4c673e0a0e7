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

package contract_test

import (
	"maps"
	"testing"

	"github.com/blinklabs-io/desci/contract"
)

const (
	escrow  contract.Account = "escrow"
	alice   contract.Account = "alice"
	bob     contract.Account = "bob"
	charlie contract.Account = "charlie"
)

type memStore struct {
	data map[string][]byte
}

func (m *memStore) Get(key []byte) ([]byte, error) {
	val, ok := m.data[string(key)]
	if !ok {
		return nil, contract.ErrKeyNotFound
	}
	return val, nil
}

func (m *memStore) Set(key []byte, val []byte) error {
	m.data[string(key)] = val
	return nil
}

type fakeHost struct {
	caller   contract.Account
	height   uint64
	balances map[contract.Account]uint64
	owners   map[uint64]contract.Account
}

func (h *fakeHost) Caller() contract.Account { return h.caller }
func (h *fakeHost) Height() uint64           { return h.height }
func (h *fakeHost) Self() contract.Account   { return escrow }

func (h *fakeHost) Transfer(from, to contract.Account, amount uint64) error {
	if h.balances[from] < amount {
		return contract.ErrInsufficientFunds
	}
	h.balances[from] -= amount
	h.balances[to] += amount
	return nil
}

func (h *fakeHost) MintToken(id uint64, owner contract.Account) error {
	if _, ok := h.owners[id]; ok {
		return contract.ErrAlreadyExists
	}
	h.owners[id] = owner
	return nil
}

func (h *fakeHost) TransferToken(id uint64, from, to contract.Account) error {
	owner, ok := h.owners[id]
	if !ok {
		return contract.ErrNotFound
	}
	if owner != from {
		return contract.ErrNotAuthorized
	}
	h.owners[id] = to
	return nil
}

func (h *fakeHost) TokenOwner(id uint64) (contract.Account, bool, error) {
	owner, ok := h.owners[id]
	return owner, ok, nil
}

// harness plays the host: it runs one entry point at a time and discards every
// write made by a call that fails
type harness struct {
	t     *testing.T
	store *memStore
	host  *fakeHost
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:     t,
		store: &memStore{data: make(map[string][]byte)},
		host: &fakeHost{
			balances: make(map[contract.Account]uint64),
			owners:   make(map[uint64]contract.Account),
		},
	}
}

func (h *harness) fund(account contract.Account, amount uint64) {
	h.host.balances[account] += amount
}

func (h *harness) setHeight(height uint64) {
	h.host.height = height
}

func (h *harness) call(
	caller contract.Account,
	fn func(*contract.State) error,
) error {
	h.t.Helper()
	savedData := maps.Clone(h.store.data)
	savedBalances := maps.Clone(h.host.balances)
	savedOwners := maps.Clone(h.host.owners)
	h.host.caller = caller
	err := fn(contract.NewState(h.store, h.host))
	if err != nil {
		h.store.data = savedData
		h.host.balances = savedBalances
		h.host.owners = savedOwners
	}
	return err
}

// read runs a read-only entry point and verifies that it did not write
func (h *harness) read(fn func(*contract.State) error) error {
	h.t.Helper()
	before := maps.Clone(h.store.data)
	err := fn(contract.NewState(h.store, h.host))
	if !maps.EqualFunc(before, h.store.data, func(a, b []byte) bool {
		return string(a) == string(b)
	}) {
		h.t.Fatalf("read-only entry point modified state")
	}
	return err
}

func (h *harness) submitProposal(
	caller contract.Account,
	fundingRequested uint64,
) uint64 {
	h.t.Helper()
	var id uint64
	err := h.call(caller, func(s *contract.State) error {
		var err error
		id, err = s.SubmitProposal(
			"Soil microbiome survey",
			"Sequencing soil samples across climate zones",
			"biology",
			fundingRequested,
		)
		return err
	})
	if err != nil {
		h.t.Fatalf("unexpected error submitting proposal: %s", err)
	}
	return id
}

func (h *harness) proposal(id uint64) contract.Proposal {
	h.t.Helper()
	var opt contract.Optional[contract.Proposal]
	if err := h.read(func(s *contract.State) error {
		var err error
		opt, err = s.Proposal(id)
		return err
	}); err != nil {
		h.t.Fatalf("unexpected error reading proposal: %s", err)
	}
	p, ok := opt.Get()
	if !ok {
		h.t.Fatalf("proposal %d not found", id)
	}
	return p
}

func (h *harness) milestone(id uint64) contract.Milestone {
	h.t.Helper()
	var opt contract.Optional[contract.Milestone]
	if err := h.read(func(s *contract.State) error {
		var err error
		opt, err = s.Milestone(id)
		return err
	}); err != nil {
		h.t.Fatalf("unexpected error reading milestone: %s", err)
	}
	m, ok := opt.Get()
	if !ok {
		h.t.Fatalf("milestone %d not found", id)
	}
	return m
}

func (h *harness) contribute(
	caller contract.Account,
	proposalID uint64,
	amount uint64,
) (uint64, error) {
	h.t.Helper()
	var id uint64
	err := h.call(caller, func(s *contract.State) error {
		var err error
		id, err = s.Contribute(proposalID, amount)
		return err
	})
	return id, err
}
