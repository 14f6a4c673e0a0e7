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

// Register creates a profile for the caller
func (s *State) Register(name string, institution string) error {
	caller := s.host.Caller()
	key := accountKey(prefixResearcher, caller)
	var existing ResearcherProfile
	found, err := s.load(key, &existing)
	if err != nil {
		return err
	}
	if found {
		return ErrAlreadyExists
	}
	return s.save(
		key,
		&ResearcherProfile{
			Name:            name,
			Institution:     institution,
			Verified:        false,
			ReputationScore: 0,
		},
	)
}

// ResearcherProfile looks up the profile for any account
func (s *State) ResearcherProfile(
	account Account,
) (Optional[ResearcherProfile], error) {
	var profile ResearcherProfile
	found, err := s.load(accountKey(prefixResearcher, account), &profile)
	if err != nil || !found {
		return None[ResearcherProfile](), err
	}
	return Some(profile), nil
}
