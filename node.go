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

package desci

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/blinklabs-io/desci/api"
	"github.com/blinklabs-io/desci/database"
	"github.com/blinklabs-io/desci/driver"
	"github.com/blinklabs-io/desci/event"
	"github.com/blinklabs-io/desci/ledger"
	"github.com/blinklabs-io/desci/mempool"
)

type Node struct {
	eventBus      *event.EventBus
	mempool       *mempool.Mempool
	db            *database.Database
	ledgerState   *ledger.LedgerState
	driver        *driver.Driver
	api           *api.API
	redisSink     *event.RedisSubscriber
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	started       chan struct{}
	startOnce     sync.Once
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
		started:  make(chan struct{}),
	}
	return n, nil
}

// Run starts all node components and blocks until the context is cancelled
// or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.start(ctx); err != nil {
		return errors.Join(err, n.Stop())
	}
	n.startOnce.Do(func() { close(n.started) })
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return n.Stop()
}

func (n *Node) start(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(
		&database.Config{
			DataDir:        n.config.dataDir,
			Logger:         n.config.logger,
			PromRegistry:   n.config.promRegistry,
			BlobPlugin:     n.config.blobPlugin,
			MetadataPlugin: n.config.metadataPlugin,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Publish committed events to redis
	if n.config.redisUrl != "" {
		redisClient, err := event.NewRedisClient(n.config.redisUrl)
		if err != nil {
			return err
		}
		n.shutdownFuncs = append(
			n.shutdownFuncs,
			func(context.Context) error {
				return redisClient.Close()
			},
		)
		n.redisSink = event.NewRedisSubscriber(
			redisClient,
			n.config.redisStream,
			0,
		)
		eventTypes := append(
			[]event.EventType{
				event.CallAppliedEventType,
				event.BlockEventType,
			},
			event.ContractEventTypes...,
		)
		n.eventBus.RegisterRedisSink(n.redisSink, eventTypes...)
		n.config.logger.Info(
			"publishing events to redis",
			"component", "node",
			"stream", n.config.redisStream,
		)
	}
	// Load state
	state, err := ledger.NewLedgerState(
		ledger.LedgerStateConfig{
			Logger:       n.config.logger,
			Database:     n.db,
			EventBus:     n.eventBus,
			PromRegistry: n.config.promRegistry,
			FeeAccount:   n.config.feeAccount,
			MinFee:       n.config.minFee,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	n.ledgerState = state
	if len(n.config.genesis) > 0 {
		if err := n.ledgerState.Genesis(n.config.genesis); err != nil {
			if !errors.Is(err, ledger.ErrGenesisApplied) {
				return fmt.Errorf("failed to apply genesis: %w", err)
			}
			n.config.logger.Debug(
				"genesis already applied, skipping",
				"component", "node",
			)
		}
	}
	// Initialize mempool
	n.mempool = mempool.NewMempool(
		mempool.MempoolConfig{
			MempoolCapacity: n.config.mempoolCapacity,
			Logger:          n.config.logger,
			EventBus:        n.eventBus,
			PromRegistry:    n.config.promRegistry,
			Validator:       n.ledgerState,
		},
	)
	// Configure block driver
	n.driver, err = driver.NewDriver(
		driver.DriverConfig{
			Logger:           n.config.logger,
			EventBus:         n.eventBus,
			PromRegistry:     n.config.promRegistry,
			Ledger:           n.ledgerState,
			CallSource:       n.mempool,
			BlockInterval:    n.config.blockInterval,
			MaxCallsPerBlock: n.config.maxCallsPerBlock,
		},
	)
	if err != nil {
		return err
	}
	if err := n.driver.Start(ctx); err != nil {
		return err
	}
	// Configure API
	n.api = api.New(
		api.APIConfig{
			ListenAddress: n.config.apiListenAddress,
			EnableTracing: n.config.tracing,
		},
		api.NewNodeAdapter(n.ledgerState, n.mempool),
		n.config.logger,
	)
	if err := n.api.Start(ctx); err != nil {
		return err
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
		"height", n.ledgerState.Height(),
		"api", n.api.Addr().String(),
	)
	return nil
}

// Started returns a channel that is closed once all components are running
func (n *Node) Started() <-chan struct{} {
	return n.started
}

// APIAddr returns the bound API address. It is only valid after Started is closed
func (n *Node) APIAddr() net.Addr {
	if n.api == nil {
		return nil
	}
	return n.api.Addr()
}

// LedgerState returns the node ledger. It is only valid after Started is closed
func (n *Node) LedgerState() *ledger.LedgerState {
	return n.ledgerState
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	shutdownTimeout := DefaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	if n.driver != nil {
		n.driver.Stop()
	}

	// Phase 2: Drain pending work
	n.config.logger.Debug("shutdown phase 2: draining mempool")

	if n.mempool != nil {
		if pending := n.mempool.Len(); pending > 0 {
			n.config.logger.Info(
				"discarding pending calls",
				"component", "node",
				"count", pending,
			)
		}
		n.mempool.Stop()
	}

	if n.redisSink != nil {
		n.redisSink.Close()
	}

	// Phase 3: Close database
	n.config.logger.Debug("shutdown phase 3: closing database")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
