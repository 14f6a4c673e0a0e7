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

package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/event"
	testutils "github.com/blinklabs-io/desci/internal/test/testutil"
	"github.com/blinklabs-io/desci/ledger"
	"github.com/blinklabs-io/desci/mempool"
)

func verifyNoLeaks(t *testing.T) {
	goleak.VerifyNone(
		t,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type fakeLedger struct {
	applied   []string
	failIDs   map[string]bool
	height    uint64
	advanceFn func() error
	mu        sync.Mutex
}

func (l *fakeLedger) Apply(call ledger.Call) (*ledger.CallResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applied = append(l.applied, call.ID)
	return &ledger.CallResult{
		CallID:  call.ID,
		Method:  call.Method,
		Height:  l.height,
		Success: !l.failIDs[call.ID],
	}, nil
}

func (l *fakeLedger) AdvanceHeight() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.advanceFn != nil {
		if err := l.advanceFn(); err != nil {
			return l.height, err
		}
	}
	l.height++
	return l.height, nil
}

func (l *fakeLedger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

type fakeSource struct {
	calls []ledger.Call
	mu    sync.Mutex
}

func (s *fakeSource) NextBatch(limit int) []ledger.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := min(limit, len(s.calls))
	ret := s.calls[:count]
	s.calls = s.calls[count:]
	return ret
}

func testCalls(n int) []ledger.Call {
	ret := make([]ledger.Call, 0, n)
	for i := range n {
		ret = append(ret, ledger.Call{
			ID:     string(rune('a' + i)),
			Method: ledger.MethodIncrement,
		})
	}
	return ret
}

func TestNewDriverRequiresDependencies(t *testing.T) {
	_, err := NewDriver(DriverConfig{CallSource: &fakeSource{}})
	require.Error(t, err)
	_, err = NewDriver(DriverConfig{Ledger: &fakeLedger{}})
	require.Error(t, err)
	d, err := NewDriver(DriverConfig{Ledger: &fakeLedger{}, CallSource: &fakeSource{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultBlockInterval, d.config.BlockInterval)
	assert.Equal(t, DefaultMaxCallsPerBlock, d.config.MaxCallsPerBlock)
}

func TestProduceBlock(t *testing.T) {
	defer verifyNoLeaks(t)
	l := &fakeLedger{failIDs: map[string]bool{"b": true}}
	source := &fakeSource{calls: testCalls(5)}
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	_, blockCh := eventBus.Subscribe(event.BlockEventType)
	registry := prometheus.NewRegistry()
	d, err := NewDriver(DriverConfig{
		Ledger:           l,
		CallSource:       source,
		EventBus:         eventBus,
		PromRegistry:     registry,
		MaxCallsPerBlock: 3,
	})
	require.NoError(t, err)

	block, err := d.ProduceBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block.Height)
	assert.Len(t, block.Results, 3)
	assert.Equal(t, 1, block.Failed)
	assert.Equal(t, []string{"a", "b", "c"}, l.applied)
	assert.Equal(t, uint64(1), l.Height())

	evt := testutils.RequireReceive(t, blockCh, time.Second, "block event")
	blockEvt, ok := evt.Data.(event.BlockEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, blockEvt.CallIDs)
	assert.Equal(t, 1, blockEvt.Failed)

	// Empty blocks still advance the height
	block, err = d.ProduceBlock()
	require.NoError(t, err)
	assert.Len(t, block.Results, 2)
	block, err = d.ProduceBlock()
	require.NoError(t, err)
	assert.Empty(t, block.Results)
	assert.Equal(t, uint64(3), l.Height())
	assert.InDelta(t, 3, testutil.ToFloat64(d.metrics.blocksProduced), 0)
}

func TestProduceBlockAdvanceFailure(t *testing.T) {
	errAdvance := errors.New("disk full")
	l := &fakeLedger{advanceFn: func() error { return errAdvance }}
	d, err := NewDriver(DriverConfig{Ledger: l, CallSource: &fakeSource{calls: testCalls(1)}})
	require.NoError(t, err)
	_, err = d.ProduceBlock()
	require.ErrorIs(t, err, errAdvance)
	assert.InDelta(t, 1, testutil.ToFloat64(d.metrics.blockErrors), 0)
	assert.Equal(t, uint64(0), l.Height())
}

func TestStartStop(t *testing.T) {
	defer verifyNoLeaks(t)
	l := &fakeLedger{}
	d, err := NewDriver(DriverConfig{
		Ledger:        l,
		CallSource:    &fakeSource{calls: testCalls(2)},
		BlockInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	require.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, d.IsRunning())
	testutils.WaitForCondition(
		t,
		func() bool { return l.Height() >= 3 },
		2*time.Second,
		"driver should produce blocks",
	)
	d.Stop()
	assert.False(t, d.IsRunning())
	// Stop is idempotent
	d.Stop()
}

func TestContextCancelStopsDriver(t *testing.T) {
	defer verifyNoLeaks(t)
	d, err := NewDriver(DriverConfig{
		Ledger:        &fakeLedger{},
		CallSource:    &fakeSource{},
		BlockInterval: time.Hour,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	cancel()
	testutils.WaitForCondition(
		t,
		func() bool { return !d.IsRunning() },
		time.Second,
		"driver should stop on context cancel",
	)
	d.Stop()
}

func TestDriverWithLedger(t *testing.T) {
	db := testutils.NewTestDatabase(t)
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database: db,
		EventBus: eventBus,
		MinFee:   1,
	})
	require.NoError(t, err)
	alice, err := ledger.AccountFromSeed([]byte("alice"))
	require.NoError(t, err)
	require.NoError(t, ls.Genesis(map[contract.Account]uint64{alice: 10}))
	pool := mempool.NewMempool(mempool.MempoolConfig{
		Validator: ls,
		EventBus:  eventBus,
	})
	defer pool.Stop()
	var ids []string
	for _, method := range []string{ledger.MethodIncrement, ledger.MethodDecrement, ledger.MethodDecrement} {
		call, err := ledger.NewCall(alice, method, nil, 1)
		require.NoError(t, err)
		require.NoError(t, pool.AddCall(call))
		ids = append(ids, call.ID)
	}
	d, err := NewDriver(DriverConfig{
		Ledger:     ls,
		CallSource: pool,
		EventBus:   eventBus,
	})
	require.NoError(t, err)
	block, err := d.ProduceBlock()
	require.NoError(t, err)
	require.Len(t, block.Results, 3)
	assert.True(t, block.Results[0].Success)
	assert.True(t, block.Results[1].Success)
	// The second decrement underflows
	assert.ErrorIs(t, block.Results[2].Err(), contract.ErrUnderflow)
	assert.Equal(t, 1, block.Failed)
	assert.Equal(t, uint64(1), ls.Height())
	assert.Equal(t, 0, pool.Len())

	for _, id := range ids {
		receipt, err := ls.Receipt(id)
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.Equal(t, uint64(0), receipt.Height)
	}
	balance, err := ls.Balance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), balance)
}
