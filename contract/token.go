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

import "fmt"

// Token ownership is held in two places: the host registry and the local token
// record. Every operation that touches ownership writes both in the same call, and
// TokenOwner is the only owner query exposed.

func (s *State) mintToken(owner Account) (uint64, error) {
	id, err := s.nextID(CounterToken)
	if err != nil {
		return 0, err
	}
	if err := s.host.MintToken(id, owner); err != nil {
		return 0, fmt.Errorf("mint token %d: %w", id, err)
	}
	token := &ImpactToken{
		ID:    id,
		Owner: owner,
		URI:   ImpactTokenURI,
	}
	if err := s.save(idKey(prefixToken, id), token); err != nil {
		return 0, err
	}
	return id, nil
}

// LastTokenID returns the most recently minted token id, 0 if none
func (s *State) LastTokenID() (uint64, error) {
	return s.currentID(CounterToken)
}

func (s *State) TokenURI(id uint64) (string, error) {
	token, err := s.mustToken(id)
	if err != nil {
		return "", err
	}
	return token.URI, nil
}

// TokenOwner returns the owner recorded by the host token registry
func (s *State) TokenOwner(id uint64) (Optional[Account], error) {
	owner, ok, err := s.host.TokenOwner(id)
	if err != nil || !ok {
		return None[Account](), err
	}
	return Some(owner), nil
}

// TransferToken moves a token between accounts. The caller must be the sender.
func (s *State) TransferToken(id uint64, from Account, to Account) error {
	if s.host.Caller() != from {
		return ErrNotAuthorized
	}
	if err := s.host.TransferToken(id, from, to); err != nil {
		return fmt.Errorf("transfer token %d: %w", id, err)
	}
	token, err := s.mustToken(id)
	if err != nil {
		return err
	}
	token.Owner = to
	return s.save(idKey(prefixToken, id), token)
}

// Token returns the full token record
func (s *State) Token(id uint64) (Optional[ImpactToken], error) {
	var token ImpactToken
	found, err := s.load(idKey(prefixToken, id), &token)
	if err != nil || !found {
		return None[ImpactToken](), err
	}
	return Some(token), nil
}

func (s *State) mustToken(id uint64) (*ImpactToken, error) {
	opt, err := s.Token(id)
	if err != nil {
		return nil, err
	}
	token, ok := opt.Get()
	if !ok {
		return nil, ErrNotFound
	}
	return &token, nil
}
