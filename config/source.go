// Copyright 2025 The Velox Authors
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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// Codec identifies a configuration encoding.
type Codec int

const (
	// YAML decodes with goccy/go-yaml.
	YAML Codec = iota
	// TOML decodes with BurntSushi/toml.
	TOML
	// JSON decodes with encoding/json.
	JSON
)

// decode unmarshals data into a generic map.
func (c Codec) decode(data []byte) (map[string]any, error) {
	out := map[string]any{}
	switch c {
	case YAML:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	case TOML:
		if err := toml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	case JSON:
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown codec %d", c)
	}
	return out, nil
}

// codecForPath picks the codec from the file extension.
func codecForPath(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	case ".json":
		return JSON, nil
	}
	return 0, fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
}

// Source yields one layer of configuration values.
type Source interface {
	Name() string
	Load() (map[string]any, error)
}

type fileSource struct {
	path string
}

func (s fileSource) Name() string { return s.path }

func (s fileSource) Load() (map[string]any, error) {
	codec, err := codecForPath(s.path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return codec.decode(data)
}

type contentSource struct {
	data  []byte
	codec Codec
}

func (s contentSource) Name() string { return "content" }

func (s contentSource) Load() (map[string]any, error) {
	return s.codec.decode(s.data)
}

// envSource maps PREFIX_SERVER_PORT to server_port; a double underscore
// descends one nesting level, so PREFIX_SECTION__KEY becomes
// section.key.
type envSource struct {
	prefix string
}

func (s envSource) Name() string { return "env:" + s.prefix }

func (s envSource) Load() (map[string]any, error) {
	out := map[string]any{}
	prefix := strings.ToUpper(s.prefix) + "_"
	for _, kv := range os.Environ() {
		name, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(name, prefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(name, prefix)), "__")
		cur := out
		for i, part := range path {
			if i == len(path)-1 {
				cur[part] = value
				break
			}
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[part] = next
			}
			cur = next
		}
	}
	return out, nil
}
