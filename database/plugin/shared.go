// Copyright 2025 Blink Labs Software
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

package plugin

import (
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Shared dependencies handed to plugins when they are constructed from the
// registry. They must be set before the plugin is started.
var (
	sharedLogger       *slog.Logger
	sharedPromRegistry prometheus.Registerer
	sharedMutex        sync.RWMutex
)

// SetLogger sets the logger passed to plugins started after this call
func SetLogger(logger *slog.Logger) {
	sharedMutex.Lock()
	defer sharedMutex.Unlock()
	sharedLogger = logger
}

// Logger returns the shared plugin logger, or a logger that discards output
func Logger() *slog.Logger {
	sharedMutex.RLock()
	defer sharedMutex.RUnlock()
	if sharedLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return sharedLogger
}

// SetPromRegistry sets the metrics registry passed to plugins started after
// this call. A nil registry disables plugin metrics.
func SetPromRegistry(registry prometheus.Registerer) {
	sharedMutex.Lock()
	defer sharedMutex.Unlock()
	sharedPromRegistry = registry
}

// PromRegistry returns the shared plugin metrics registry, which may be nil
func PromRegistry() prometheus.Registerer {
	sharedMutex.RLock()
	defer sharedMutex.RUnlock()
	return sharedPromRegistry
}
