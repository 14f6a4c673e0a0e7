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

package event_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/event"
)

type fakeStreamer struct {
	err  error
	args []*redis.XAddArgs
	mu   sync.Mutex
}

func (f *fakeStreamer) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, a)
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func (f *fakeStreamer) calls() []*redis.XAddArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*redis.XAddArgs(nil), f.args...)
}

func TestRedisSubscriberDeliver(t *testing.T) {
	streamer := &fakeStreamer{}
	sub := event.NewRedisSubscriber(streamer, "", 0)
	ts := time.UnixMilli(1700000000000)
	err := sub.Deliver(event.Event{
		Type:      event.ProposalFundedEventType,
		Timestamp: ts,
		Data: event.ProposalFundedEvent{
			ProposalID:       1,
			FundingRequested: 500,
			FundingReceived:  500,
		},
	})
	require.NoError(t, err)
	calls := streamer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, event.DefaultRedisStream, calls[0].Stream)
	assert.Equal(t, int64(event.DefaultRedisMaxLen), calls[0].MaxLen)
	assert.True(t, calls[0].Approx)
	values, ok := calls[0].Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "contract.proposal_funded", values["type"])
	assert.Equal(t, ts.UnixMilli(), values["timestamp"])
	var data event.ProposalFundedEvent
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &data))
	assert.Equal(t, uint64(500), data.FundingReceived)

	sub.Close()
	require.NoError(t, sub.Deliver(event.NewEvent(event.BlockEventType, nil)))
	assert.Len(t, streamer.calls(), 1)
}

func TestRedisSinkRemovedOnError(t *testing.T) {
	streamer := &fakeStreamer{err: assert.AnError}
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	sub := event.NewRedisSubscriber(streamer, "custom", 10)
	ids := eb.RegisterRedisSink(sub, event.BlockEventType, event.ContributionEventType)
	require.Len(t, ids, 2)
	eb.Publish(event.BlockEventType, event.NewEvent(event.BlockEventType, event.BlockEvent{Height: 1}))
	eb.Publish(event.BlockEventType, event.NewEvent(event.BlockEventType, event.BlockEvent{Height: 2}))
	calls := streamer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "custom", calls[0].Stream)
}

func TestNewRedisClient(t *testing.T) {
	client, err := event.NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Close())

	_, err = event.NewRedisClient("not a url")
	assert.Error(t, err)
}
