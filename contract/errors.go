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

import "errors"

// Error is a contract failure kind. The set of kinds is closed: every entry point
// fails with one of the package-level Err* values (possibly wrapped).
type Error struct {
	Name string
	Code uint32
}

func (e *Error) Error() string {
	return "contract: " + e.Name
}

var (
	ErrNotAuthorized     = &Error{Name: "not authorized", Code: 100}
	ErrNotFound          = &Error{Name: "not found", Code: 101}
	ErrAlreadyExists     = &Error{Name: "already exists", Code: 102}
	ErrInvalidStatus     = &Error{Name: "invalid status", Code: 103}
	ErrInsufficientFunds = &Error{Name: "insufficient funds", Code: 104}
	// ErrMilestoneNotApproved is part of the error model but no entry point raises it
	ErrMilestoneNotApproved = &Error{Name: "milestone not approved", Code: 105}
	// ErrProposalNotFunded is part of the error model but no entry point raises it
	ErrProposalNotFunded = &Error{Name: "proposal not funded", Code: 106}
	ErrVotingEnded       = &Error{Name: "voting ended", Code: 107}

	// ErrUnderflow is returned by the utility counter only
	ErrUnderflow = &Error{Name: "counter underflow", Code: 0}
)

var allErrors = []*Error{
	ErrNotAuthorized,
	ErrNotFound,
	ErrAlreadyExists,
	ErrInvalidStatus,
	ErrInsufficientFunds,
	ErrMilestoneNotApproved,
	ErrProposalNotFunded,
	ErrVotingEnded,
	ErrUnderflow,
}

// ErrorFromCode returns the error kind registered for the given code
func ErrorFromCode(code uint32) (*Error, bool) {
	for _, e := range allErrors {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}

// AsError extracts the contract error kind from err, if any
func AsError(err error) (*Error, bool) {
	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}
