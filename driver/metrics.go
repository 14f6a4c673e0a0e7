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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type driverMetrics struct {
	blocksProduced prometheus.Counter
	blockErrors    prometheus.Counter
	blockCalls     prometheus.Histogram
	blockDuration  prometheus.Histogram
}

func initDriverMetrics(reg prometheus.Registerer) *driverMetrics {
	factory := promauto.With(reg)
	m := &driverMetrics{}
	m.blocksProduced = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_driver_blocks_total",
			Help: "blocks produced",
		},
	)
	m.blockErrors = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "desci_driver_block_errors_total",
			Help: "blocks that failed to advance the ledger height",
		},
	)
	m.blockCalls = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name: "desci_driver_block_calls",
			Help: "number of calls in produced blocks",
			Buckets: prometheus.LinearBuckets(
				0, 10, 20,
			), // 0, 10, 20, ..., 190
		},
	)
	m.blockDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "desci_driver_block_duration_seconds",
			Help:    "time spent producing a block",
			Buckets: prometheus.DefBuckets,
		},
	)
	return m
}
