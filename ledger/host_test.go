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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database"
	"github.com/blinklabs-io/desci/database/types"
	"github.com/blinklabs-io/desci/internal/test/testutil"
)

func newTestHost(t *testing.T, caller contract.Account) *txnHost {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	txn := database.NewBlobOnlyTxn(db, true)
	t.Cleanup(txn.Release)
	return newTxnHost(txn, caller, 10)
}

func testAccount(t *testing.T, seed string) contract.Account {
	t.Helper()
	account, err := AccountFromSeed([]byte(seed))
	require.NoError(t, err)
	return account
}

func TestHostTransfer(t *testing.T) {
	alice := testAccount(t, "alice")
	bob := testAccount(t, "bob")
	host := newTestHost(t, alice)
	require.NoError(t, host.setBalance(alice, 100))

	err := host.Transfer(alice, bob, 101)
	require.ErrorIs(t, err, contract.ErrInsufficientFunds)

	// Self transfer only checks the balance
	require.NoError(t, host.Transfer(alice, alice, 100))
	require.ErrorIs(t, host.Transfer(alice, alice, 101), contract.ErrInsufficientFunds)

	require.NoError(t, host.Transfer(alice, ContractAccount, 60))
	aliceBalance, err := host.balance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), aliceBalance)
	assert.True(t, host.escrowTouched)
	assert.Equal(t, uint64(60), host.escrowBalance)

	require.NoError(t, host.Transfer(ContractAccount, bob, 25))
	bobBalance, err := host.balance(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), bobBalance)
	assert.Equal(t, uint64(35), host.escrowBalance)
}

func TestHostTransferOverflow(t *testing.T) {
	alice := testAccount(t, "alice")
	bob := testAccount(t, "bob")
	host := newTestHost(t, alice)
	require.NoError(t, host.setBalance(alice, 10))
	require.NoError(t, host.setBalance(bob, ^uint64(0)))
	err := host.Transfer(alice, bob, 1)
	require.Error(t, err)
	_, isKind := contract.AsError(err)
	assert.False(t, isKind)
}

func TestHostTokenRegistry(t *testing.T) {
	alice := testAccount(t, "alice")
	bob := testAccount(t, "bob")
	host := newTestHost(t, alice)

	_, found, err := host.TokenOwner(1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, host.MintToken(1, alice))
	require.ErrorIs(t, host.MintToken(1, bob), contract.ErrAlreadyExists)

	require.ErrorIs(t, host.TransferToken(2, alice, bob), contract.ErrNotFound)
	require.ErrorIs(t, host.TransferToken(1, bob, alice), contract.ErrNotAuthorized)
	require.NoError(t, host.TransferToken(1, alice, bob))

	owner, found, err := host.TokenOwner(1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, bob, owner)
	assert.Equal(t, []uint64{1, 1}, host.tokensTouched)
}

func TestTxnStoreMapsMissingKeys(t *testing.T) {
	host := newTestHost(t, testAccount(t, "alice"))
	store := &txnStore{txn: host.txn}
	_, err := store.Get([]byte{0x01})
	require.ErrorIs(t, err, contract.ErrKeyNotFound)
	require.NoError(t, store.Set([]byte{0x01}, []byte("value")))
	val, err := store.Get([]byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
	// Contract keys live under their own namespace
	raw, err := host.txn.BlobGet(types.ContractKey([]byte{0x01}))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), raw)
}
