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

import "github.com/blinklabs-io/desci/ledger"

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Code       uint32 `json:"code,omitempty"`
}

type HealthResponse struct {
	Height    uint64 `json:"height"`
	IsHealthy bool   `json:"isHealthy"`
}

type HeightResponse struct {
	Height uint64 `json:"height"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// SubmitCallRequest is the body of POST /calls. An empty ID is filled in by
// the server.
type SubmitCallRequest = ledger.Call

type SubmitCallResponse struct {
	ID string `json:"id"`
}

// PendingCallResponse is returned for a call still waiting in the mempool
type PendingCallResponse struct {
	ID      string `json:"id"`
	Pending bool   `json:"pending"`
}
