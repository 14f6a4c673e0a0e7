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

// Package contract implements the research funding state transitions:
// researcher registration, proposals, voting, contributions with impact token
// issuance, and milestone payouts.
//
// Each entry point is a method on State, which is bound to a single host call.
// The host runs one call at a time and commits the writes made through Store
// only when the entry point returns a nil error, so entry points may fail at any
// step without undoing earlier writes themselves.
package contract
