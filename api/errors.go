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

package api

import (
	"errors"
	"net/http"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/ledger"
	"github.com/blinklabs-io/desci/mempool"
)

// errorStatus maps an error to its HTTP status and contract error code
func errorStatus(err error) (int, uint32) {
	if cErr, ok := contract.AsError(err); ok {
		switch cErr {
		case contract.ErrNotFound:
			return http.StatusNotFound, cErr.Code
		case contract.ErrNotAuthorized:
			return http.StatusForbidden, cErr.Code
		case contract.ErrAlreadyExists,
			contract.ErrInvalidStatus,
			contract.ErrVotingEnded:
			return http.StatusConflict, cErr.Code
		case contract.ErrInsufficientFunds:
			return http.StatusPaymentRequired, cErr.Code
		default:
			return http.StatusUnprocessableEntity, cErr.Code
		}
	}
	var fullErr *mempool.MempoolFullError
	switch {
	case errors.As(err, &fullErr):
		return http.StatusServiceUnavailable, 0
	case errors.Is(err, mempool.ErrDuplicateCall),
		errors.Is(err, ledger.ErrCallApplied):
		return http.StatusConflict, 0
	case errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, ledger.ErrUnknownMethod),
		errors.Is(err, ledger.ErrNotReadOnly),
		errors.Is(err, ledger.ErrFeeTooLow),
		errors.Is(err, ledger.ErrInvalidCallID),
		errors.Is(err, ledger.ErrInvalidAccount),
		errors.Is(err, ErrInvalidPaginationParameters),
		errors.Is(err, errInvalidID),
		errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, 0
	}
	return http.StatusInternalServerError, 0
}
