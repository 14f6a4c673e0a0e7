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
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"

	"github.com/blinklabs-io/desci/contract"
)

const (
	// AccountHrp is the bech32 human-readable part of every account identity
	AccountHrp = "desci"
	// AccountHashSize is the length of the blake2b digest behind an account
	AccountHashSize = 28

	contractAccountSeed = "desci/contract"
)

// ContractAccount is the escrow account controlled by the contract
var ContractAccount = mustAccountFromSeed([]byte(contractAccountSeed))

var ErrInvalidAccount = errors.New("invalid account")

// AccountFromSeed derives an account identity from arbitrary seed bytes
func AccountFromSeed(seed []byte) (contract.Account, error) {
	hasher, err := blake2b.New(AccountHashSize, nil)
	if err != nil {
		return "", err
	}
	hasher.Write(seed)
	convData, err := bech32.ConvertBits(hasher.Sum(nil), 8, 5, true)
	if err != nil {
		return "", err
	}
	encoded, err := bech32.Encode(AccountHrp, convData)
	if err != nil {
		return "", err
	}
	return contract.Account(encoded), nil
}

func mustAccountFromSeed(seed []byte) contract.Account {
	account, err := AccountFromSeed(seed)
	if err != nil {
		panic(err)
	}
	return account
}

// ValidateAccount checks that account is a bech32 identity with the expected
// prefix and digest length
func ValidateAccount(account contract.Account) error {
	hrp, data, err := bech32.Decode(string(account))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	if hrp != AccountHrp {
		return fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAccount, hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	if len(decoded) != AccountHashSize {
		return fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidAccount,
			AccountHashSize,
			len(decoded),
		)
	}
	return nil
}
