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

package plugin_test

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/database/plugin"
)

type mockPlugin struct {
	started bool
}

func (m *mockPlugin) Start() error {
	m.started = true
	return nil
}

func (m *mockPlugin) Stop() error { return nil }

type mockOptions struct {
	dir     string
	enabled bool
	workers int
	size    uint64
}

func registerMock(t *testing.T, pluginType plugin.PluginType) (string, *mockOptions) {
	t.Helper()
	name := "mock-" + t.Name()
	opts := &mockOptions{}
	plugin.Register(plugin.PluginEntry{
		Type:               pluginType,
		Name:               name,
		Description:        "mock plugin",
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "dir",
				Type:         plugin.PluginOptionTypeString,
				DefaultValue: "/tmp/default",
				Dest:         &opts.dir,
			},
			{
				Name: "enabled",
				Type: plugin.PluginOptionTypeBool,
				Dest: &opts.enabled,
			},
			{
				Name:         "workers",
				Type:         plugin.PluginOptionTypeInt,
				DefaultValue: 4,
				Dest:         &opts.workers,
			},
			{
				Name:         "size",
				Type:         plugin.PluginOptionTypeUint,
				CustomEnvVar: "MOCK_SIZE_" + t.Name(),
				Dest:         &opts.size,
			},
		},
	})
	return name, opts
}

func TestRegisterAndGet(t *testing.T) {
	name, _ := registerMock(t, plugin.PluginTypeBlob)

	p := plugin.GetPlugin(plugin.PluginTypeBlob, name)
	require.NotNil(t, p)
	assert.IsType(t, &mockPlugin{}, p)

	// Same name under another type is a different plugin
	assert.Nil(t, plugin.GetPlugin(plugin.PluginTypeMetadata, name))
	assert.Nil(t, plugin.GetPlugin(plugin.PluginTypeBlob, "does-not-exist"))

	found := false
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if entry.Name == name {
			found = true
		}
	}
	assert.True(t, found)
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeMetadata) {
		assert.NotEqual(t, name, entry.Name)
	}
}

func TestStartPlugin(t *testing.T) {
	name, _ := registerMock(t, plugin.PluginTypeMetadata)
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, name)
	require.NoError(t, err)
	mock, ok := p.(*mockPlugin)
	require.True(t, ok)
	assert.True(t, mock.started)

	_, err = plugin.StartPlugin(plugin.PluginTypeMetadata, "missing")
	assert.ErrorContains(t, err, "metadata plugin 'missing' not found")

	errName := "error-" + t.Name()
	startErr := errors.New("boom")
	plugin.Register(plugin.PluginEntry{
		Type: plugin.PluginTypeBlob,
		Name: errName,
		NewFromOptionsFunc: func() plugin.Plugin {
			return plugin.NewErrorPlugin(startErr)
		},
	})
	_, err = plugin.StartPlugin(plugin.PluginTypeBlob, errName)
	assert.ErrorIs(t, err, startErr)
}

func TestPopulateCmdlineOptions(t *testing.T) {
	name, opts := registerMock(t, plugin.PluginTypeBlob)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	assert.Equal(t, "/tmp/default", opts.dir)
	assert.Equal(t, 4, opts.workers)

	require.NoError(t, fs.Parse([]string{
		"--blob-" + name + "-dir", "/data",
		"--blob-" + name + "-enabled",
		"--blob-" + name + "-size", "1024",
	}))
	assert.Equal(t, "/data", opts.dir)
	assert.True(t, opts.enabled)
	assert.Equal(t, uint64(1024), opts.size)
}

func TestProcessEnvVars(t *testing.T) {
	_, opts := registerMock(t, plugin.PluginTypeMetadata)
	t.Setenv("DESCI_DATABASE_METADATA_MOCK_"+envName(t.Name())+"_DIR", "/env")
	t.Setenv("MOCK_SIZE_"+t.Name(), "77")
	require.NoError(t, plugin.ProcessEnvVars())
	assert.Equal(t, "/env", opts.dir)
	assert.Equal(t, uint64(77), opts.size)

	t.Setenv("MOCK_SIZE_"+t.Name(), "not-a-number")
	assert.Error(t, plugin.ProcessEnvVars())
}

func TestProcessConfig(t *testing.T) {
	name, opts := registerMock(t, plugin.PluginTypeBlob)
	err := plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {
			name: {
				"dir":     "/config",
				"enabled": true,
				"workers": 9,
				"size":    2048,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "/config", opts.dir)
	assert.True(t, opts.enabled)
	assert.Equal(t, 9, opts.workers)
	assert.Equal(t, uint64(2048), opts.size)

	err = plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {name: {"enabled": 3.5}},
	})
	assert.Error(t, err)
}

func envName(testName string) string {
	ret := []byte(testName)
	for i, c := range ret {
		if c >= 'a' && c <= 'z' {
			ret[i] = c - 'a' + 'A'
		}
	}
	return string(ret)
}
