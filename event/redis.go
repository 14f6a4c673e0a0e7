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

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisStream   = "desci:events"
	DefaultRedisMaxLen   = 10000
	redisDeliverTimeout  = 2 * time.Second
	redisEnvelopeDataKey = "data"
	redisEnvelopeTypeKey = "type"
	redisEnvelopeTimeKey = "timestamp"
)

// RedisStreamer is the subset of the redis client used to append events
type RedisStreamer interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSubscriber appends every delivered event to a redis stream so that
// other processes can follow committed state changes
type RedisSubscriber struct {
	client RedisStreamer
	stream string
	maxLen int64
	mu     sync.Mutex
	closed bool
}

func NewRedisSubscriber(
	client RedisStreamer,
	stream string,
	maxLen int64,
) *RedisSubscriber {
	if stream == "" {
		stream = DefaultRedisStream
	}
	if maxLen <= 0 {
		maxLen = DefaultRedisMaxLen
	}
	return &RedisSubscriber{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// NewRedisClient creates a client from a redis:// URL
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func (r *RedisSubscriber) Deliver(evt Event) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil
	}
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisDeliverTimeout)
	defer cancel()
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			redisEnvelopeTypeKey: string(evt.Type),
			redisEnvelopeTimeKey: evt.Timestamp.UnixMilli(),
			redisEnvelopeDataKey: string(data),
		},
	}).Err()
}

func (r *RedisSubscriber) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// RegisterRedisSink subscribes a single RedisSubscriber to each of the given
// event types
func (e *EventBus) RegisterRedisSink(
	sub *RedisSubscriber,
	eventTypes ...EventType,
) []EventSubscriberId {
	ret := make([]EventSubscriberId, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		ret = append(ret, e.RegisterSubscriber(eventType, sub))
	}
	return ret
}
