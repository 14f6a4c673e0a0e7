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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/blinklabs-io/desci"
	"github.com/blinklabs-io/desci/contract"
	"github.com/blinklabs-io/desci/internal/config"
	"github.com/blinklabs-io/desci/ledger"
)

// GenesisBalances returns the configured genesis balances. In dev mode with no
// configured balances, the dev accounts are funded instead.
func GenesisBalances(cfg *config.Config) (map[contract.Account]uint64, error) {
	ret := make(map[contract.Account]uint64, len(cfg.Genesis))
	for account, balance := range cfg.Genesis {
		if err := ledger.ValidateAccount(contract.Account(account)); err != nil {
			return nil, fmt.Errorf("genesis: %w", err)
		}
		ret[contract.Account(account)] = balance
	}
	if len(ret) > 0 || !cfg.RunMode.IsDevMode() {
		return ret, nil
	}
	for _, seed := range config.DevAccountSeeds {
		account, err := ledger.AccountFromSeed([]byte(seed))
		if err != nil {
			return nil, err
		}
		ret[account] = config.DefaultDevBalance
	}
	return ret, nil
}

// Options maps the loaded config to node options
func Options(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) ([]desci.ConfigOptionFunc, error) {
	genesis, err := GenesisBalances(cfg)
	if err != nil {
		return nil, err
	}
	databasePath := cfg.DatabasePath
	if cfg.RunMode.IsDevMode() {
		// Dev mode keeps everything in memory
		databasePath = ""
	}
	return []desci.ConfigOptionFunc{
		desci.WithLogger(logger),
		desci.WithDatabasePath(databasePath),
		desci.WithBlobPlugin(cfg.BlobPlugin),
		desci.WithMetadataPlugin(cfg.MetadataPlugin),
		desci.WithMempoolCapacity(cfg.MempoolCapacity),
		desci.WithBlockInterval(cfg.BlockInterval),
		desci.WithMaxCallsPerBlock(cfg.MaxCallsPerBlock),
		desci.WithMinFee(cfg.MinFee),
		desci.WithFeeAccount(contract.Account(cfg.FeeAccount)),
		desci.WithGenesis(genesis),
		desci.WithApiListenAddress(
			net.JoinHostPort(cfg.BindAddr, strconv.FormatUint(uint64(cfg.ApiPort), 10)),
		),
		desci.WithRedisUrl(cfg.RedisUrl),
		desci.WithRedisStream(cfg.RedisStream),
		desci.WithShutdownTimeout(cfg.ShutdownTimeout),
		desci.WithPrometheusRegistry(promRegistry),
		desci.WithTracing(cfg.Tracing),
		desci.WithTracingStdout(cfg.TracingStdout),
	}, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts, err := Options(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	d, err := desci.New(desci.NewConfig(opts...))
	if err != nil {
		return err
	}
	if cfg.RunMode.IsDevMode() {
		logger.Warn(
			"running in dev mode, state is not persisted",
			"component", "node",
		)
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	g, ctx := errgroup.WithContext(signalCtx)
	g.Go(func() error {
		if err := d.Run(ctx); err != nil {
			logger.Error("node error", "error", err)
			return err
		}
		return nil
	})
	if cfg.MetricsPort > 0 {
		metricsServer := newMetricsServer(
			net.JoinHostPort(
				cfg.BindAddr,
				strconv.FormatUint(uint64(cfg.MetricsPort), 10),
			),
		)
		logger.Info(
			"serving prometheus metrics on "+metricsServer.Addr,
			"component", "node",
		)
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start metrics listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				cfg.ShutdownTimeout,
			)
			defer cancel()
			//nolint:contextcheck
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
			return nil
		})
	}
	err = g.Wait()
	if signalCtx.Err() != nil {
		logger.Info("signal received, shutdown complete")
	}
	return err
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
