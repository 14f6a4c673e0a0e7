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
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeBlob PluginType = iota + 1
	PluginTypeMetadata
)

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

// PluginOption describes a single plugin setting. Dest must be a pointer
// matching Type.
type PluginOption struct {
	Name         string
	Type         PluginOptionType
	Description  string
	DefaultValue any
	CustomEnvVar string
	Dest         any
}

type PluginEntry struct {
	Type               PluginType
	Name               string
	Description        string
	NewFromOptionsFunc func() Plugin
	Options            []PluginOption
}

var (
	pluginEntries      []PluginEntry
	pluginEntriesMutex sync.RWMutex
)

// envVarPrefix is prepended to generated plugin option env var names
const envVarPrefix = "DESCI_DATABASE_"

// Register adds a plugin to the registry. It is meant to be called from init()
func Register(pluginEntry PluginEntry) {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns the registered plugins of the given type
func GetPlugins(pluginType PluginType) []PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	ret := []PluginEntry{}
	for _, p := range pluginEntries {
		if p.Type == pluginType {
			ret = append(ret, p)
		}
	}
	return ret
}

// GetPlugin creates a new plugin instance from the current option values
func GetPlugin(pluginType PluginType, pluginName string) Plugin {
	pluginEntriesMutex.RLock()
	var newFunc func() Plugin
	for _, p := range pluginEntries {
		if p.Type == pluginType && p.Name == pluginName {
			newFunc = p.NewFromOptionsFunc
			break
		}
	}
	pluginEntriesMutex.RUnlock()
	if newFunc == nil {
		return nil
	}
	return newFunc()
}

func (p PluginOption) flagName(pluginEntry PluginEntry) string {
	return fmt.Sprintf(
		"%s-%s-%s",
		PluginTypeName(pluginEntry.Type),
		pluginEntry.Name,
		p.Name,
	)
}

func (p PluginOption) envVarName(pluginEntry PluginEntry) string {
	if p.CustomEnvVar != "" {
		return p.CustomEnvVar
	}
	return strings.ToUpper(
		strings.ReplaceAll(
			envVarPrefix+p.flagName(pluginEntry),
			"-",
			"_",
		),
	)
}

// AddToFlagSet registers the option as a flag bound directly to Dest
func (p PluginOption) AddToFlagSet(
	fs *pflag.FlagSet,
	pluginEntry PluginEntry,
) error {
	flagName := p.flagName(pluginEntry)
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok {
			return fmt.Errorf("option %s: expected *string destination", flagName)
		}
		def, _ := p.DefaultValue.(string)
		fs.StringVar(dest, flagName, def, p.Description)
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok {
			return fmt.Errorf("option %s: expected *bool destination", flagName)
		}
		def, _ := p.DefaultValue.(bool)
		fs.BoolVar(dest, flagName, def, p.Description)
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok {
			return fmt.Errorf("option %s: expected *int destination", flagName)
		}
		def, _ := p.DefaultValue.(int)
		fs.IntVar(dest, flagName, def, p.Description)
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("option %s: expected *uint64 destination", flagName)
		}
		def, _ := p.DefaultValue.(uint64)
		fs.Uint64Var(dest, flagName, def, p.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, flagName)
	}
	return nil
}

// PopulateCmdlineOptions adds a flag for every option of every registered plugin
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, pluginEntry := range pluginEntries {
		for _, option := range pluginEntry.Options {
			if err := option.AddToFlagSet(fs, pluginEntry); err != nil {
				return err
			}
		}
	}
	return nil
}

// setFromString parses a config or env value into Dest
func (p PluginOption) setFromString(value string) error {
	switch p.Type {
	case PluginOptionTypeString:
		return setDest(p.Dest, value)
	case PluginOptionTypeBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		return setDest(p.Dest, v)
	case PluginOptionTypeInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		return setDest(p.Dest, v)
	case PluginOptionTypeUint:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		return setDest(p.Dest, v)
	default:
		return fmt.Errorf("unknown plugin option type %d", p.Type)
	}
}

// setFromValue assigns a decoded YAML value to Dest
func (p PluginOption) setFromValue(value any) error {
	switch v := value.(type) {
	case string:
		return p.setFromString(v)
	case bool:
		if p.Type != PluginOptionTypeBool {
			return fmt.Errorf("unexpected bool value for option %s", p.Name)
		}
		return setDest(p.Dest, v)
	case int:
		switch p.Type {
		case PluginOptionTypeInt:
			return setDest(p.Dest, v)
		case PluginOptionTypeUint:
			if v < 0 {
				return fmt.Errorf("negative value for option %s", p.Name)
			}
			return setDest(p.Dest, uint64(v))
		}
		return fmt.Errorf("unexpected int value for option %s", p.Name)
	case uint64:
		if p.Type != PluginOptionTypeUint {
			return fmt.Errorf("unexpected uint value for option %s", p.Name)
		}
		return setDest(p.Dest, v)
	default:
		return fmt.Errorf("unsupported value type %T for option %s", value, p.Name)
	}
}

func setDest[T any](dest any, value T) error {
	ptr, ok := dest.(*T)
	if !ok || ptr == nil {
		return fmt.Errorf("invalid destination %T for value of type %T", dest, value)
	}
	*ptr = value
	return nil
}

// ProcessEnvVars applies any plugin option env vars that are set
func ProcessEnvVars() error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, pluginEntry := range pluginEntries {
		for _, option := range pluginEntry.Options {
			envVar := option.envVarName(pluginEntry)
			value, ok := os.LookupEnv(envVar)
			if !ok {
				continue
			}
			if err := option.setFromString(value); err != nil {
				return fmt.Errorf("env var %s: %w", envVar, err)
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin options from a config file. The map is keyed by
// plugin type name, then plugin name, then option name.
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, pluginEntry := range pluginEntries {
		typeConfig, ok := pluginConfig[PluginTypeName(pluginEntry.Type)]
		if !ok {
			continue
		}
		entryConfig, ok := typeConfig[pluginEntry.Name]
		if !ok {
			continue
		}
		for _, option := range pluginEntry.Options {
			value, ok := entryConfig[option.Name]
			if !ok {
				continue
			}
			if err := option.setFromValue(value); err != nil {
				return fmt.Errorf(
					"%s plugin %s: %w",
					PluginTypeName(pluginEntry.Type),
					pluginEntry.Name,
					err,
				)
			}
		}
	}
	return nil
}
