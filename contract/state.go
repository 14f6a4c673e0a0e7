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

package contract

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
)

// ErrKeyNotFound must be returned by a Store when a key is absent
var ErrKeyNotFound = errors.New("key not found")

// Store is the key/value view of the current host transaction. Writes become
// visible to other calls only when the host commits.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key []byte, val []byte) error
}

// Host exposes the execution environment capabilities the contract relies on
type Host interface {
	// Caller returns the identity that invoked the current entry point
	Caller() Account
	// Height returns the current ledger height
	Height() uint64
	// Self returns the contract-controlled escrow account
	Self() Account
	// Transfer moves native currency. It fails with ErrInsufficientFunds when
	// the sender balance is too low.
	Transfer(from Account, to Account, amount uint64) error
	MintToken(id uint64, owner Account) error
	TransferToken(id uint64, from Account, to Account) error
	TokenOwner(id uint64) (Account, bool, error)
}

// Storage key prefixes, one byte per record kind
const (
	prefixCounter      byte = 0x01
	prefixResearcher   byte = 0x02
	prefixProposal     byte = 0x10
	prefixMilestone    byte = 0x11
	prefixContribution byte = 0x12
	prefixToken        byte = 0x20
	prefixUtility      byte = 0x30
)

func idKey(prefix byte, id uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], id)
	return key
}

func accountKey(prefix byte, account Account) []byte {
	return append([]byte{prefix}, account...)
}

// State binds the contract logic to one host call
type State struct {
	store Store
	host  Host
}

func NewState(store Store, host Host) *State {
	return &State{
		store: store,
		host:  host,
	}
}

// load decodes the record at key into dest. It returns false when the key is absent.
func (s *State) load(key []byte, dest any) (bool, error) {
	data, err := s.store.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := cbor.Decode(data, dest); err != nil {
		return false, fmt.Errorf("decode record %x: %w", key, err)
	}
	return true, nil
}

func (s *State) save(key []byte, val any) error {
	data, err := cbor.Encode(val)
	if err != nil {
		return fmt.Errorf("encode record %x: %w", key, err)
	}
	return s.store.Set(key, data)
}

func (s *State) loadUint(key []byte) (uint64, error) {
	data, err := s.store.Get(key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt counter %x: %d bytes", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (s *State) saveUint(key []byte, val uint64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, val)
	return s.store.Set(key, data)
}
