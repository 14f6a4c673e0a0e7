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

package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	callResultSuccess  = "success"
	callResultFailed   = "failed"
	callResultRejected = "rejected"
)

type stateMetrics struct {
	height        prometheus.Gauge
	calls         *prometheus.CounterVec
	feesCollected prometheus.Counter
	escrowBalance prometheus.Gauge
}

func (m *stateMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.height = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "desci_ledger_height",
		Help: "current ledger height",
	})
	m.calls = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desci_ledger_calls_total",
			Help: "applied calls by method and result",
		},
		[]string{"method", "result"},
	)
	m.feesCollected = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "desci_ledger_fees_collected_total",
		Help: "total call fees charged",
	})
	m.escrowBalance = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "desci_ledger_escrow_balance",
		Help: "native currency held by the contract escrow account",
	})
}
