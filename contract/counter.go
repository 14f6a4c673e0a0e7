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

// Counter identifies one of the independent id sequences
type Counter byte

const (
	CounterProposal     Counter = 0x01
	CounterMilestone    Counter = 0x02
	CounterContribution Counter = 0x03
	CounterToken        Counter = 0x04
)

func counterKey(c Counter) []byte {
	return []byte{prefixCounter, byte(c)}
}

// currentID returns the last id handed out for the counter, 0 if none
func (s *State) currentID(c Counter) (uint64, error) {
	return s.loadUint(counterKey(c))
}

// nextID increments the counter and returns the new value. Ids start at 1.
// The value wraps at the uint64 boundary; nothing guards against it.
func (s *State) nextID(c Counter) (uint64, error) {
	cur, err := s.currentID(c)
	if err != nil {
		return 0, err
	}
	next := cur + 1
	if err := s.saveUint(counterKey(c), next); err != nil {
		return 0, err
	}
	return next, nil
}
