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

// The utility counter is used for connectivity checks by clients and has no
// relation to the funding state.

var utilityKey = []byte{prefixUtility}

func (s *State) Increment() (uint64, error) {
	cur, err := s.loadUint(utilityKey)
	if err != nil {
		return 0, err
	}
	cur++
	if err := s.saveUint(utilityKey, cur); err != nil {
		return 0, err
	}
	return cur, nil
}

func (s *State) Decrement() (uint64, error) {
	cur, err := s.loadUint(utilityKey)
	if err != nil {
		return 0, err
	}
	if cur == 0 {
		return 0, ErrUnderflow
	}
	cur--
	if err := s.saveUint(utilityKey, cur); err != nil {
		return 0, err
	}
	return cur, nil
}

func (s *State) GetCounter() (uint64, error) {
	return s.loadUint(utilityKey)
}
