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

package mempool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/desci/event"
	"github.com/blinklabs-io/desci/ledger"
)

const (
	AddCallEventType    event.EventType = "mempool.add_call"
	RemoveCallEventType event.EventType = "mempool.remove_call"

	DefaultMempoolCapacity int64 = 1 << 20

	// revalidation is skipped when blocks arrive faster than this
	revalidateInterval = 30 * time.Second
)

// Reasons attached to RemoveCallEvent
const (
	RemoveReasonSelected = "selected"
	RemoveReasonInvalid  = "invalid"
	RemoveReasonRemoved  = "removed"
)

var ErrDuplicateCall = errors.New("call already in mempool")

type AddCallEvent struct {
	CallID string
	Caller string
	Method string
	Size   int
}

type RemoveCallEvent struct {
	CallID string
	Reason string
}

type MempoolCall struct {
	Added time.Time
	Call  ledger.Call
	Size  int
}

// CallValidator defines the call validation needed by the mempool
type CallValidator interface {
	ValidateCall(call ledger.Call) error
}

type MempoolConfig struct {
	PromRegistry    prometheus.Registerer
	Validator       CallValidator
	Logger          *slog.Logger
	EventBus        *event.EventBus
	MempoolCapacity int64
}

// Mempool holds validated calls waiting to be applied, in arrival order
type Mempool struct {
	config  MempoolConfig
	metrics struct {
		callsProcessed prometheus.Counter
		callsInMempool prometheus.Gauge
		mempoolBytes   prometheus.Gauge
	}
	validator CallValidator
	logger    *slog.Logger
	eventBus  *event.EventBus
	calls     []*MempoolCall
	done      chan struct{}
	wg        sync.WaitGroup
	size      int
	stopOnce  sync.Once
	sync.RWMutex
}

type MempoolFullError struct {
	CurrentSize int
	CallSize    int
	Capacity    int64
}

func (e *MempoolFullError) Error() string {
	return fmt.Sprintf(
		"mempool full: current size=%d bytes, call size=%d bytes, capacity=%d bytes",
		e.CurrentSize,
		e.CallSize,
		e.Capacity,
	)
}

func NewMempool(config MempoolConfig) *Mempool {
	if config.MempoolCapacity <= 0 {
		config.MempoolCapacity = DefaultMempoolCapacity
	}
	m := &Mempool{
		eventBus:  config.EventBus,
		validator: config.Validator,
		config:    config,
		done:      make(chan struct{}),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = config.Logger
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	m.metrics.callsProcessed = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_mempool_calls_processed_total",
			Help: "total calls accepted into the mempool",
		},
	)
	m.metrics.callsInMempool = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "desci_mempool_calls",
		Help: "current count of mempool calls",
	})
	m.metrics.mempoolBytes = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "desci_mempool_bytes",
		Help: "current size of mempool calls in bytes",
	})
	// Re-validate pending calls after each block
	if m.eventBus != nil && m.validator != nil {
		blockSubId, blockChan := m.eventBus.Subscribe(event.BlockEventType)
		m.wg.Add(1)
		go m.processBlockEvents(blockSubId, blockChan)
	}
	return m
}

// Stop ends background re-validation. It is safe to call more than once.
func (m *Mempool) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *Mempool) processBlockEvents(
	subId event.EventSubscriberId,
	blockChan <-chan event.Event,
) {
	defer m.wg.Done()
	defer m.eventBus.Unsubscribe(event.BlockEventType, subId)
	lastValidationTime := time.Now()
	for {
		select {
		case <-m.done:
			return
		case _, ok := <-blockChan:
			if !ok {
				return
			}
		}
		// Only revalidate once every 30 seconds when there are more blocks available
		if time.Since(lastValidationTime) < revalidateInterval &&
			len(blockChan) > 0 {
			continue
		}
		lastValidationTime = time.Now()
		m.revalidate()
	}
}

// revalidate drops pending calls that no longer pass validation, such as
// calls whose caller can no longer pay the fee
func (m *Mempool) revalidate() {
	m.Lock()
	defer m.Unlock()
	// We iterate backward to avoid issues with shifting indexes when deleting
	for i := len(m.calls) - 1; i >= 0; i-- {
		call := m.calls[i]
		if err := m.validator.ValidateCall(call.Call); err != nil {
			m.removeCallByIndex(i, RemoveReasonInvalid)
			m.logger.Debug(
				"removed call after re-validation failure",
				"component", "mempool",
				"call_id", call.Call.ID,
				"error", err,
			)
		}
	}
}

func (m *Mempool) AddCall(call ledger.Call) error {
	// Validate call
	if m.validator != nil {
		if err := m.validator.ValidateCall(call); err != nil {
			return err
		}
	}
	entry := &MempoolCall{
		Call:  call,
		Size:  call.Size(),
		Added: time.Now(),
	}
	m.Lock()
	defer m.Unlock()
	if m.getCall(call.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateCall, call.ID)
	}
	// Enforce mempool capacity
	if int64(m.size+entry.Size) > m.config.MempoolCapacity {
		return &MempoolFullError{
			CurrentSize: m.size,
			CallSize:    entry.Size,
			Capacity:    m.config.MempoolCapacity,
		}
	}
	m.calls = append(m.calls, entry)
	m.size += entry.Size
	m.logger.Debug(
		"added call",
		"component", "mempool",
		"call_id", call.ID,
		"method", call.Method,
	)
	m.metrics.callsProcessed.Inc()
	m.metrics.callsInMempool.Inc()
	m.metrics.mempoolBytes.Add(float64(entry.Size))
	m.publish(
		AddCallEventType,
		AddCallEvent{
			CallID: call.ID,
			Caller: string(call.Caller),
			Method: call.Method,
			Size:   entry.Size,
		},
	)
	return nil
}

// NextBatch removes and returns up to limit calls in arrival order
func (m *Mempool) NextBatch(limit int) []ledger.Call {
	m.Lock()
	defer m.Unlock()
	count := min(limit, len(m.calls))
	if count <= 0 {
		return nil
	}
	ret := make([]ledger.Call, 0, count)
	for range count {
		ret = append(ret, m.calls[0].Call)
		m.removeCallByIndex(0, RemoveReasonSelected)
	}
	return ret
}

func (m *Mempool) GetCall(id string) (MempoolCall, bool) {
	m.RLock()
	defer m.RUnlock()
	ret := m.getCall(id)
	if ret == nil {
		return MempoolCall{}, false
	}
	return *ret, true
}

func (m *Mempool) Calls() []MempoolCall {
	m.RLock()
	defer m.RUnlock()
	ret := make([]MempoolCall, len(m.calls))
	for i := range m.calls {
		ret[i] = *m.calls[i]
	}
	return ret
}

// Len returns the number of pending calls
func (m *Mempool) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.calls)
}

// Size returns the total encoded size of pending calls
func (m *Mempool) Size() int {
	m.RLock()
	defer m.RUnlock()
	return m.size
}

func (m *Mempool) getCall(id string) *MempoolCall {
	for _, call := range m.calls {
		if call.Call.ID == id {
			return call
		}
	}
	return nil
}

func (m *Mempool) RemoveCall(id string) bool {
	m.Lock()
	defer m.Unlock()
	for idx, call := range m.calls {
		if call.Call.ID == id {
			m.removeCallByIndex(idx, RemoveReasonRemoved)
			m.logger.Debug(
				"removed call",
				"component", "mempool",
				"call_id", id,
			)
			return true
		}
	}
	return false
}

func (m *Mempool) removeCallByIndex(idx int, reason string) {
	call := m.calls[idx]
	m.calls = slices.Delete(m.calls, idx, idx+1)
	m.size -= call.Size
	m.metrics.callsInMempool.Dec()
	m.metrics.mempoolBytes.Sub(float64(call.Size))
	m.publish(
		RemoveCallEventType,
		RemoveCallEvent{
			CallID: call.Call.ID,
			Reason: reason,
		},
	)
}

func (m *Mempool) publish(eventType event.EventType, data any) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
