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

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/contract"
)

func TestAccountFromSeed(t *testing.T) {
	alice1, err := AccountFromSeed([]byte("alice"))
	require.NoError(t, err)
	alice2, err := AccountFromSeed([]byte("alice"))
	require.NoError(t, err)
	bob, err := AccountFromSeed([]byte("bob"))
	require.NoError(t, err)
	assert.Equal(t, alice1, alice2)
	assert.NotEqual(t, alice1, bob)
	assert.Contains(t, string(alice1), AccountHrp+"1")
	assert.NoError(t, ValidateAccount(alice1))
	assert.NoError(t, ValidateAccount(ContractAccount))
	assert.NoError(t, ValidateAccount(FeeSinkAccount))
	assert.NotEqual(t, ContractAccount, FeeSinkAccount)
}

func TestValidateAccount(t *testing.T) {
	foreignData, err := bech32.ConvertBits(make([]byte, AccountHashSize), 8, 5, true)
	require.NoError(t, err)
	foreign, err := bech32.Encode("addr", foreignData)
	require.NoError(t, err)
	shortData, err := bech32.ConvertBits(make([]byte, 20), 8, 5, true)
	require.NoError(t, err)
	short, err := bech32.Encode(AccountHrp, shortData)
	require.NoError(t, err)
	testDefs := []struct {
		name    string
		account contract.Account
	}{
		{name: "empty", account: ""},
		{name: "garbage", account: "not-an-account"},
		{name: "foreign prefix", account: contract.Account(foreign)},
		{name: "short digest", account: contract.Account(short)},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateAccount(testDef.account), ErrInvalidAccount)
		})
	}
}
