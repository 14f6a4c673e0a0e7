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
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/desci/database"
	"github.com/blinklabs-io/desci/database/plugin"
)

type ctxKey string

const configContextKey ctxKey = "desci.config"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultBlobPlugin      = database.DefaultBlobPlugin
	DefaultMetadataPlugin  = database.DefaultMetadataPlugin
	DefaultShutdownTimeout = 30 * time.Second
	DefaultBlockInterval   = 5 * time.Second
	DefaultDevBalance      = 1_000_000
)

// DevAccountSeeds are credited with DefaultDevBalance in dev mode when no
// genesis balances are configured
var DevAccountSeeds = []string{"alice", "bob", "carol"}

// RunMode represents the operational mode of the desci node
type RunMode string

const (
	RunModeServe RunMode = "serve" // Persistent node (default)
	RunModeDev   RunMode = "dev"   // In-memory node with funded dev accounts
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

func (m RunMode) IsDevMode() bool {
	return m == RunModeDev
}

type tempConfig struct {
	Config   *yaml.Node      `yaml:"config,omitempty"`
	Database *databaseConfig `yaml:"database,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	Genesis          map[string]uint64 `yaml:"genesis"`
	DatabasePath     string            `yaml:"databasePath"     split_words:"true"`
	BlobPlugin       string            `yaml:"blobPlugin"       envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin   string            `yaml:"metadataPlugin"   envconfig:"DATABASE_METADATA_PLUGIN"`
	BindAddr         string            `yaml:"bindAddr"         split_words:"true"`
	FeeAccount       string            `yaml:"feeAccount"       split_words:"true"`
	RedisUrl         string            `yaml:"redisUrl"         split_words:"true"`
	RedisStream      string            `yaml:"redisStream"      split_words:"true"`
	RunMode          RunMode           `yaml:"runMode"          split_words:"true"`
	MempoolCapacity  int64             `yaml:"mempoolCapacity"  split_words:"true"`
	BlockInterval    time.Duration     `yaml:"blockInterval"    split_words:"true"`
	ShutdownTimeout  time.Duration     `yaml:"shutdownTimeout"  split_words:"true"`
	MinFee           uint64            `yaml:"minFee"           split_words:"true"`
	MaxCallsPerBlock int               `yaml:"maxCallsPerBlock" split_words:"true"`
	ApiPort          uint              `yaml:"apiPort"          split_words:"true"`
	MetricsPort      uint              `yaml:"metricsPort"      split_words:"true"`
	Tracing          bool              `yaml:"tracing"`
	TracingStdout    bool              `yaml:"tracingStdout"    split_words:"true"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:     ".desci",
		BlobPlugin:       DefaultBlobPlugin,
		MetadataPlugin:   DefaultMetadataPlugin,
		BindAddr:         "0.0.0.0",
		RunMode:          RunModeServe,
		MempoolCapacity:  1048576,
		BlockInterval:    DefaultBlockInterval,
		ShutdownTimeout:  DefaultShutdownTimeout,
		MinFee:           1,
		MaxCallsPerBlock: 100,
		ApiPort:          8080,
		MetricsPort:      12799,
	}
}

var globalConfig = DefaultConfig()

// LoadConfig builds the config from defaults, the YAML config file, the
// environment and plugin settings, in that order. An empty configFile checks
// ~/.desci/desci.yaml and then /etc/desci/desci.yaml.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := cfg.loadYaml(buf); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	if err := envconfig.Process("desci", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	// Process plugin environment variables
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RunMode == "" {
		cfg.RunMode = RunModeServe
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}

func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".desci", "desci.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/desci/desci.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

func (c *Config) loadYaml(buf []byte) error {
	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	if tempCfg.Config != nil {
		// Only keys present in the config section override the defaults
		if err := tempCfg.Config.Decode(c); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(buf, c); err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if tempCfg.Database == nil {
		return nil
	}
	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Database.Blob != nil {
		name, blobConfig := pluginSection("blob", tempCfg.Database.Blob)
		if name != "" {
			c.BlobPlugin = name
		}
		pluginConfig["blob"] = blobConfig
	}
	if tempCfg.Database.Metadata != nil {
		name, metadataConfig := pluginSection("metadata", tempCfg.Database.Metadata)
		if name != "" {
			c.MetadataPlugin = name
		}
		pluginConfig["metadata"] = metadataConfig
	}
	if err := plugin.ProcessConfig(pluginConfig); err != nil {
		return fmt.Errorf("error processing plugin config: %w", err)
	}
	return nil
}

// pluginSection splits a database YAML section into the selected plugin name
// and per-plugin option maps
func pluginSection(
	sectionName string,
	section map[string]any,
) (string, map[string]map[string]any) {
	var pluginName string
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			if name, ok := v.(string); ok {
				pluginName = name
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = maps.Clone(val)
		case map[any]any:
			// Convert map[any]any to map[string]any
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				sectionName,
				k,
				v,
			)
		}
	}
	return pluginName, ret
}

// Validate checks field values that cannot be expressed by their types
func (c *Config) Validate() error {
	if !c.RunMode.Valid() {
		return fmt.Errorf(
			"invalid runMode: %q (must be 'serve' or 'dev')",
			c.RunMode,
		)
	}
	if c.BlockInterval <= 0 {
		return fmt.Errorf("invalid blockInterval: %s", c.BlockInterval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdownTimeout: %s", c.ShutdownTimeout)
	}
	if c.MaxCallsPerBlock <= 0 {
		return errors.New("maxCallsPerBlock must be positive")
	}
	return nil
}
