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

// Package driver produces blocks on a fixed interval. Each block applies a
// batch of pending calls in arrival order and then advances the ledger height.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/desci/event"
	"github.com/blinklabs-io/desci/ledger"
)

const (
	DefaultBlockInterval    = 5 * time.Second
	DefaultMaxCallsPerBlock = 100
)

var ErrAlreadyRunning = errors.New("driver already running")

// CallSource supplies pending calls in arrival order
type CallSource interface {
	NextBatch(limit int) []ledger.Call
}

// Ledger applies calls and tracks the block height
type Ledger interface {
	Apply(call ledger.Call) (*ledger.CallResult, error)
	AdvanceHeight() (uint64, error)
	Height() uint64
}

type DriverConfig struct {
	Logger           *slog.Logger
	EventBus         *event.EventBus
	PromRegistry     prometheus.Registerer
	Ledger           Ledger
	CallSource       CallSource
	BlockInterval    time.Duration
	MaxCallsPerBlock int
}

// Block summarizes one produced block
type Block struct {
	Timestamp time.Time
	Results   []*ledger.CallResult
	Height    uint64
	Failed    int
}

type Driver struct {
	config  DriverConfig
	logger  *slog.Logger
	metrics *driverMetrics
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	// produceMu serializes block production between the loop and callers
	produceMu sync.Mutex
	mu        sync.RWMutex
	running   bool
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("driver requires a ledger")
	}
	if cfg.CallSource == nil {
		return nil, errors.New("driver requires a call source")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = DefaultBlockInterval
	}
	if cfg.MaxCallsPerBlock <= 0 {
		cfg.MaxCallsPerBlock = DefaultMaxCallsPerBlock
	}
	return &Driver{
		config:  cfg,
		logger:  cfg.Logger,
		metrics: initDriverMetrics(cfg.PromRegistry),
	}, nil
}

// Start begins block production. The provided context controls the driver's
// lifecycle.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	d.logger.Info(
		"block driver started",
		"component", "driver",
		"interval", d.config.BlockInterval.String(),
		"max_calls", d.config.MaxCallsPerBlock,
	)
	go d.runLoop(ctx)
	return nil
}

// Stop halts block production and blocks until the loop has exited
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Driver) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *Driver) runLoop(ctx context.Context) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.cancel = nil
		d.mu.Unlock()
		d.logger.Info("block driver stopped", "component", "driver")
	}()
	ticker := time.NewTicker(d.config.BlockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.ProduceBlock(); err != nil {
				d.logger.Error(
					"block production failed",
					"component", "driver",
					"error", err,
				)
			}
		}
	}
}

// ProduceBlock applies the next batch of pending calls at the current height,
// then advances the height and publishes a block event. Calls that fail are
// still part of the block; only a failure to advance the height is returned.
func (d *Driver) ProduceBlock() (*Block, error) {
	d.produceMu.Lock()
	defer d.produceMu.Unlock()
	start := time.Now()
	block := &Block{
		Height: d.config.Ledger.Height(),
	}
	calls := d.config.CallSource.NextBatch(d.config.MaxCallsPerBlock)
	for _, call := range calls {
		result, err := d.config.Ledger.Apply(call)
		if err != nil {
			d.logger.Error(
				"failed to record call outcome",
				"component", "driver",
				"call_id", call.ID,
				"error", err,
			)
		}
		if result == nil {
			block.Failed++
			continue
		}
		if !result.Success {
			block.Failed++
		}
		block.Results = append(block.Results, result)
	}
	if _, err := d.config.Ledger.AdvanceHeight(); err != nil {
		d.metrics.blockErrors.Inc()
		return block, fmt.Errorf("block at height %d: %w", block.Height, err)
	}
	block.Timestamp = time.Now()
	d.metrics.blocksProduced.Inc()
	d.metrics.blockCalls.Observe(float64(len(calls)))
	d.metrics.blockDuration.Observe(time.Since(start).Seconds())
	if len(calls) > 0 {
		d.logger.Debug(
			fmt.Sprintf(
				"produced block at height %d with %d calls (%d failed)",
				block.Height,
				len(calls),
				block.Failed,
			),
			"component", "driver",
		)
	}
	if d.config.EventBus != nil {
		callIDs := make([]string, 0, len(calls))
		for _, call := range calls {
			callIDs = append(callIDs, call.ID)
		}
		d.config.EventBus.Publish(
			event.BlockEventType,
			event.NewEvent(
				event.BlockEventType,
				event.BlockEvent{
					Timestamp: block.Timestamp,
					CallIDs:   callIDs,
					Height:    block.Height,
					Failed:    block.Failed,
				},
			),
		)
	}
	return block, nil
}
