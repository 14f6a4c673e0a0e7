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

package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// PollResult is one observation of a polled query
type PollResult struct {
	Time  time.Time
	Value json.RawMessage
	Err   error
}

// Poller repeatedly runs a read-only query at a fixed pace
type Poller struct {
	client  *Client
	method  string
	args    any
	limiter *rate.Limiter
}

// NewPoller creates a poller for method that runs at most once per interval
func (c *Client) NewPoller(method string, args any, interval time.Duration) (*Poller, error) {
	if interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	return &Poller{
		client:  c,
		method:  method,
		args:    args,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

// Run starts polling and returns a channel of results. The first query runs
// immediately. The channel is closed once ctx is done. Query errors are
// delivered as results and do not stop the poller.
func (p *Poller) Run(ctx context.Context) <-chan PollResult {
	resultCh := make(chan PollResult)
	go func() {
		defer close(resultCh)
		for {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			value, err := p.client.Query(ctx, p.method, p.args)
			if ctx.Err() != nil {
				return
			}
			select {
			case resultCh <- PollResult{Time: time.Now(), Value: value, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return resultCh
}
