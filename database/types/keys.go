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

package types

import (
	"encoding/binary"
	"slices"
)

// The blob store keyspace is split by short prefixes. Contract state keys are
// opaque to the database and are namespaced under ContractKeyPrefix.
const (
	ContractKeyPrefix   = "c"
	BalanceKeyPrefix    = "b"
	TokenOwnerKeyPrefix = "t"
	LedgerKeyPrefix     = "l"
)

func Uint64ToBytes(input uint64) []byte {
	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, input)
	return ret
}

// ContractKey namespaces a raw contract storage key
func ContractKey(key []byte) []byte {
	return slices.Concat([]byte(ContractKeyPrefix), key)
}

// BalanceKey is the native currency balance of an account
func BalanceKey(account string) []byte {
	return slices.Concat([]byte(BalanceKeyPrefix), []byte(account))
}

// TokenOwnerKey is the host registry entry for an impact token
func TokenOwnerKey(id uint64) []byte {
	return slices.Concat([]byte(TokenOwnerKeyPrefix), Uint64ToBytes(id))
}

// LedgerKey holds simulated ledger bookkeeping such as the current height
func LedgerKey(name string) []byte {
	return slices.Concat([]byte(LedgerKeyPrefix), []byte(name))
}
