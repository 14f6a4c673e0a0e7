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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/ledger"
)

const (
	DefaultApiListenAddress = ":8080"
	DefaultShutdownTimeout  = 30 * time.Second
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	genesis          map[contract.Account]uint64
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	apiListenAddress string
	feeAccount       contract.Account
	redisUrl         string
	redisStream      string
	mempoolCapacity  int64
	minFee           uint64
	blockInterval    time.Duration
	shutdownTimeout  time.Duration
	maxCallsPerBlock int
	tracing          bool
	tracingStdout    bool
}

func (c *Config) validate() error {
	if c.feeAccount != "" {
		if err := ledger.ValidateAccount(c.feeAccount); err != nil {
			return fmt.Errorf("fee account: %w", err)
		}
	}
	for account := range c.genesis {
		if err := ledger.ValidateAccount(account); err != nil {
			return fmt.Errorf("genesis account: %w", err)
		}
	}
	if c.blockInterval < 0 {
		return errors.New("block interval must not be negative")
	}
	if c.apiListenAddress == "" {
		return errors.New("no API listen address defined")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new desci config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
		apiListenAddress: DefaultApiListenAddress,
		shutdownTimeout:  DefaultShutdownTimeout,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithApiListenAddress specifies the host:port for the HTTP API
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. Default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithMempoolCapacity sets the mempool capacity (in bytes)
func WithMempoolCapacity(capacity int64) ConfigOptionFunc {
	return func(c *Config) {
		c.mempoolCapacity = capacity
	}
}

// WithBlockInterval sets how often the driver produces a block
func WithBlockInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.blockInterval = interval
	}
}

// WithMaxCallsPerBlock limits the number of calls applied per block
func WithMaxCallsPerBlock(maxCalls int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxCallsPerBlock = maxCalls
	}
}

// WithMinFee sets the minimum fee a call must offer
func WithMinFee(fee uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.minFee = fee
	}
}

// WithFeeAccount specifies the account that collects call fees. The default
// is the ledger fee sink
func WithFeeAccount(account contract.Account) ConfigOptionFunc {
	return func(c *Config) {
		c.feeAccount = account
	}
}

// WithGenesis specifies the balances credited when the database is first created
func WithGenesis(balances map[contract.Account]uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.genesis = balances
	}
}

// WithRedisUrl enables publishing committed events to a redis stream
func WithRedisUrl(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.redisUrl = url
	}
}

// WithRedisStream overrides the redis stream name used for events
func WithRedisStream(stream string) ConfigOptionFunc {
	return func(c *Config) {
		c.redisStream = stream
	}
}
