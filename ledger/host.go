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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database"
	"github.com/blinklabs-io/desci/database/types"
)

// txnStore exposes the contract keyspace of a database transaction
type txnStore struct {
	txn *database.Txn
}

func (s *txnStore) Get(key []byte) ([]byte, error) {
	val, err := s.txn.BlobGet(types.ContractKey(key))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, contract.ErrKeyNotFound
		}
		return nil, err
	}
	return val, nil
}

func (s *txnStore) Set(key []byte, val []byte) error {
	return s.txn.BlobSet(types.ContractKey(key), val)
}

// txnHost provides the host capabilities to the contract for one call. All
// balance and token registry changes go through the call transaction.
type txnHost struct {
	txn    *database.Txn
	caller contract.Account
	height uint64
	// escrowBalance is the escrow balance after the last transfer touching it
	escrowBalance uint64
	escrowTouched bool
	// tokensTouched lists token ids whose registry entry changed
	tokensTouched []uint64
}

func newTxnHost(
	txn *database.Txn,
	caller contract.Account,
	height uint64,
) *txnHost {
	return &txnHost{
		txn:    txn,
		caller: caller,
		height: height,
	}
}

func (h *txnHost) Caller() contract.Account {
	return h.caller
}

func (h *txnHost) Height() uint64 {
	return h.height
}

func (h *txnHost) Self() contract.Account {
	return ContractAccount
}

func (h *txnHost) balance(account contract.Account) (uint64, error) {
	return readUint(h.txn, types.BalanceKey(string(account)))
}

func (h *txnHost) setBalance(account contract.Account, amount uint64) error {
	if account == ContractAccount {
		h.escrowBalance = amount
		h.escrowTouched = true
	}
	return h.txn.BlobSet(
		types.BalanceKey(string(account)),
		types.Uint64ToBytes(amount),
	)
}

// Transfer moves native currency between accounts. A transfer to self only
// checks the balance.
func (h *txnHost) Transfer(
	from contract.Account,
	to contract.Account,
	amount uint64,
) error {
	fromBalance, err := h.balance(from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf(
			"%w: %s has %d, needs %d",
			contract.ErrInsufficientFunds,
			from,
			fromBalance,
			amount,
		)
	}
	if from == to {
		return nil
	}
	toBalance, err := h.balance(to)
	if err != nil {
		return err
	}
	if toBalance+amount < toBalance {
		return fmt.Errorf("balance overflow for %s", to)
	}
	if err := h.setBalance(from, fromBalance-amount); err != nil {
		return err
	}
	return h.setBalance(to, toBalance+amount)
}

func (h *txnHost) MintToken(id uint64, owner contract.Account) error {
	_, found, err := h.TokenOwner(id)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("token %d: %w", id, contract.ErrAlreadyExists)
	}
	h.tokensTouched = append(h.tokensTouched, id)
	return h.txn.BlobSet(types.TokenOwnerKey(id), []byte(owner))
}

func (h *txnHost) TransferToken(
	id uint64,
	from contract.Account,
	to contract.Account,
) error {
	owner, found, err := h.TokenOwner(id)
	if err != nil {
		return err
	}
	if !found {
		return contract.ErrNotFound
	}
	if owner != from {
		return contract.ErrNotAuthorized
	}
	h.tokensTouched = append(h.tokensTouched, id)
	return h.txn.BlobSet(types.TokenOwnerKey(id), []byte(to))
}

func (h *txnHost) TokenOwner(id uint64) (contract.Account, bool, error) {
	val, err := h.txn.BlobGet(types.TokenOwnerKey(id))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return contract.Account(val), true, nil
}

// readUint returns a big-endian counter value, 0 when the key is missing
func readUint(txn *database.Txn, key []byte) (uint64, error) {
	val, err := txn.BlobGet(key)
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt value at %x: %d bytes", key, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}
