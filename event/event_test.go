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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/desci/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testEvtType event.EventType = "test.event"

func receive(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return evt
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for event")
	}
	return event.Event{}
}

func TestEventBusSingleSubscriber(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	evt := receive(t, subCh)
	assert.Equal(t, testEvtType, evt.Type)
	assert.Equal(t, 999, evt.Data)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	_, otherCh := eb.Subscribe("other.event")
	eb.Publish(testEvtType, event.NewEvent(testEvtType, "x"))
	assert.Equal(t, "x", receive(t, sub1Ch).Data)
	assert.Equal(t, "x", receive(t, sub2Ch).Data)
	select {
	case <-otherCh:
		t.Fatal("received event of another type")
	default:
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
	_, ok := <-subCh
	assert.False(t, ok, "subscriber channel should be closed")
	// Repeated unsubscribe is a no-op
	eb.Unsubscribe(testEvtType, subId)
}

func TestSubscribeFunc(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	eb.SubscribeFunc(testEvtType, func(event.Event) {
		count.Add(1)
		wg.Done()
	})
	for i := range 3 {
		eb.Publish(testEvtType, event.NewEvent(testEvtType, i))
	}
	wg.Wait()
	assert.Equal(t, int32(3), count.Load())
	// Stop waits for the handler goroutine
	eb.Stop()
}

func TestPublishAsync(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	require.True(t, eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, "async")))
	assert.Equal(t, "async", receive(t, subCh).Data)
}

func TestStoppedBus(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe(testEvtType)
	eb.Stop()
	eb.Stop()
	_, ok := <-subCh
	assert.False(t, ok)

	assert.False(t, eb.PublishAsync(testEvtType, event.NewEvent(testEvtType, 1)))
	subId, lateCh := eb.Subscribe(testEvtType)
	assert.Equal(t, event.EventSubscriberId(0), subId)
	_, ok = <-lateCh
	assert.False(t, ok)
	assert.Equal(t, event.EventSubscriberId(0), eb.SubscribeFunc(testEvtType, func(event.Event) {}))
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	eb := event.NewEventBus(reg, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	total := event.EventQueueSize + 5
	for i := range total {
		eb.Publish(testEvtType, event.NewEvent(testEvtType, i))
	}
	assert.Len(t, subCh, event.EventQueueSize)
	assert.InDelta(
		t,
		float64(total),
		counterValue(t, reg, "event_published_total", string(testEvtType)),
		0,
	)
	assert.InDelta(
		t,
		5,
		counterValue(t, reg, "event_delivery_errors_total", "subscriber-full"),
		0,
	)
}

type failingSubscriber struct {
	closed atomic.Bool
	panics bool
}

func (f *failingSubscriber) Deliver(event.Event) error {
	if f.panics {
		panic("boom")
	}
	return assert.AnError
}

func (f *failingSubscriber) Close() {
	f.closed.Store(true)
}

func TestFailingSubscriberIsRemoved(t *testing.T) {
	for _, panics := range []bool{false, true} {
		reg := prometheus.NewRegistry()
		eb := event.NewEventBus(reg, nil)
		sub := &failingSubscriber{panics: panics}
		subId := eb.RegisterSubscriber(testEvtType, sub)
		require.NotZero(t, subId)
		count, err := testutil.GatherAndCount(reg, "event_subscribers")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		eb.Publish(testEvtType, event.NewEvent(testEvtType, "x"))
		assert.True(t, sub.closed.Load())

		// A second publish no longer reaches the subscriber
		sub.closed.Store(false)
		eb.Publish(testEvtType, event.NewEvent(testEvtType, "y"))
		assert.False(t, sub.closed.Load())
		eb.Stop()
	}
}

func TestPublishUnsubscribeRace(t *testing.T) {
	for range 200 {
		eb := event.NewEventBus(nil, nil)
		subId, ch := eb.Subscribe(testEvtType)
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := range 10 {
				eb.Publish(testEvtType, event.NewEvent(testEvtType, j))
			}
		}()
		go func() {
			defer wg.Done()
			eb.Unsubscribe(testEvtType, subId)
			eb.Stop()
		}()
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		wg.Wait()
	}
}

// counterValue returns the value of the counter child with the given label value
func counterValue(
	t *testing.T,
	reg *prometheus.Registry,
	name string,
	label string,
) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	require.FailNow(t, "metric not found", name)
	return 0
}
