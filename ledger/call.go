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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/google/uuid"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/database/models"
	"github.com/blinklabs-io/desci/database/types"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrNotReadOnly     = errors.New("method modifies state")
	ErrFeeTooLow       = errors.New("fee below minimum")
	ErrInvalidCallID   = errors.New("invalid call id")
	ErrCallApplied     = errors.New("call already applied")
)

// Call is a request to run one contract entry point on behalf of Caller.
// Args holds the JSON encoded method arguments.
type Call struct {
	cbor.StructAsArray
	ID     string           `json:"id"`
	Caller contract.Account `json:"caller"`
	Method string           `json:"method"`
	Args   json.RawMessage  `json:"args,omitempty"`
	Fee    uint64           `json:"fee"`
}

// NewCall builds a call with a fresh id. args is encoded to JSON, and a nil
// args value produces an empty argument object.
func NewCall(
	caller contract.Account,
	method string,
	args any,
	fee uint64,
) (Call, error) {
	call := Call{
		ID:     uuid.NewString(),
		Caller: caller,
		Method: method,
		Fee:    fee,
	}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return Call{}, fmt.Errorf("encode call args: %w", err)
		}
		call.Args = data
	}
	return call, nil
}

// Size returns the encoded size of the call, used for mempool accounting
func (c Call) Size() int {
	data, err := cbor.Encode(&c)
	if err != nil {
		return len(c.ID) + len(c.Caller) + len(c.Method) + len(c.Args) + 8
	}
	return len(data)
}

// CallResult is the outcome of an applied call
type CallResult struct {
	CallID    string          `json:"callId"`
	Caller    string          `json:"caller"`
	Method    string          `json:"method"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Height    uint64          `json:"height"`
	Fee       uint64          `json:"fee"`
	ErrorCode uint32          `json:"errorCode,omitempty"`
	Success   bool            `json:"success"`
	err       error
}

// Err returns the failure of the call, or nil when it succeeded
func (r *CallResult) Err() error {
	return r.err
}

func newCallResult(call Call, height uint64) *CallResult {
	return &CallResult{
		CallID: call.ID,
		Caller: string(call.Caller),
		Method: call.Method,
		Height: height,
	}
}

func (r *CallResult) fail(err error) {
	r.Success = false
	r.Result = nil
	r.err = err
	r.Error = err.Error()
	if cErr, ok := contract.AsError(err); ok {
		r.ErrorCode = cErr.Code
	}
}

func (r *CallResult) succeed(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode call result: %w", err)
	}
	r.Success = true
	r.Result = data
	return nil
}

func (r *CallResult) receipt(appliedAt int64) *models.CallReceipt {
	return &models.CallReceipt{
		ID:           r.CallID,
		Caller:       r.Caller,
		Method:       r.Method,
		ErrorMessage: truncate(r.Error, 512),
		Result:       r.Result,
		Fee:          types.Uint64(r.Fee),
		Height:       r.Height,
		AppliedAt:    appliedAt,
		ErrorCode:    r.ErrorCode,
		Success:      r.Success,
	}
}

// CallResultFromReceipt rebuilds a call result from its stored receipt
func CallResultFromReceipt(receipt *models.CallReceipt) *CallResult {
	return &CallResult{
		CallID:    receipt.ID,
		Caller:    receipt.Caller,
		Method:    receipt.Method,
		Error:     receipt.ErrorMessage,
		Result:    receipt.Result,
		Height:    receipt.Height,
		Fee:       uint64(receipt.Fee),
		ErrorCode: receipt.ErrorCode,
		Success:   receipt.Success,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
