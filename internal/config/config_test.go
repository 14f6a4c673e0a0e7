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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desci.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolateHome(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadFlatFile(t *testing.T) {
	isolateHome(t)
	path := writeConfigFile(t, `
databasePath: "/var/lib/desci"
apiPort: 9000
blockInterval: 2s
minFee: 5
runMode: dev
genesis:
  desci1abc: 100
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	expected := DefaultConfig()
	expected.DatabasePath = "/var/lib/desci"
	expected.ApiPort = 9000
	expected.BlockInterval = 2 * time.Second
	expected.MinFee = 5
	expected.RunMode = RunModeDev
	expected.Genesis = map[string]uint64{"desci1abc": 100}
	assert.Equal(t, expected, cfg)
	assert.True(t, cfg.RunMode.IsDevMode())
}

func TestLoadConfigSectionKeepsDefaults(t *testing.T) {
	isolateHome(t)
	path := writeConfigFile(t, `
config:
  metricsPort: 9100
database:
  blob:
    plugin: badger
    badger:
      gc: false
  metadata:
    plugin: mysql
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(9100), cfg.MetricsPort)
	assert.Equal(t, uint(8080), cfg.ApiPort)
	assert.Equal(t, DefaultBlockInterval, cfg.BlockInterval)
	assert.Equal(t, "badger", cfg.BlobPlugin)
	assert.Equal(t, "mysql", cfg.MetadataPlugin)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolateHome(t)
	path := writeConfigFile(t, "apiPort: 9000\n")
	t.Setenv("DESCI_API_PORT", "9500")
	t.Setenv("DESCI_DATABASE_METADATA_PLUGIN", "mysql")
	t.Setenv("DESCI_SHUTDOWN_TIMEOUT", "5s")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(9500), cfg.ApiPort)
	assert.Equal(t, "mysql", cfg.MetadataPlugin)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoadInvalid(t *testing.T) {
	isolateHome(t)
	testDefs := []struct {
		name    string
		content string
	}{
		{name: "run mode", content: "runMode: load\n"},
		{name: "block interval", content: "blockInterval: 0s\n"},
		{name: "max calls", content: "maxCallsPerBlock: -1\n"},
		{name: "bad yaml", content: "apiPort: [1\n"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfigFile(t, testDef.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
