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
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// Config is the merged configuration map with typed access.
type Config struct {
	sources []Source
	values  map[string]any
	tag     string
}

// Option configures loading.
type Option func(*Config) error

// WithSource appends a raw source. Sources load in order; later sources
// override earlier ones.
func WithSource(s Source) Option {
	return func(c *Config) error {
		c.sources = append(c.sources, s)
		return nil
	}
}

// WithFile appends a file source; the codec follows the extension
// (.yaml/.yml, .toml, .json).
func WithFile(path string) Option {
	return WithSource(fileSource{path: path})
}

// WithContent appends literal bytes decoded with the given codec.
func WithContent(data []byte, codec Codec) Option {
	return WithSource(contentSource{data: data, codec: codec})
}

// WithEnv appends an environment source: PREFIX_SERVER_PORT=80 becomes
// server_port = "80"; a double underscore descends one level, so
// PREFIX_SECTION__KEY becomes section.key.
func WithEnv(prefix string) Option {
	return WithSource(envSource{prefix: prefix})
}

// WithTag sets the struct tag Bind reads. Default "config".
func WithTag(tag string) Option {
	return func(c *Config) error {
		c.tag = tag
		return nil
	}
}

// New loads every source in order and merges the results.
func New(opts ...Option) (*Config, error) {
	c := &Config{values: map[string]any{}, tag: "config"}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	for _, src := range c.sources {
		loaded, err := src.Load()
		if err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", src.Name(), err)
		}
		loaded = normalizeKeys(loaded)
		if err := mergo.Merge(&c.values, loaded, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("config: merging %s: %w", src.Name(), err)
		}
	}
	return c, nil
}

// MustNew is New, panicking on error.
func MustNew(opts ...Option) *Config {
	c, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Values returns the merged map.
func (c *Config) Values() map[string]any {
	return c.values
}

// Get resolves a dotted key ("server.port"). The second result reports
// presence.
func (c *Config) Get(key string) (any, bool) {
	cur := any(c.values)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[strings.ToLower(part)]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString returns the key coerced to a string, or fallback.
func (c *Config) GetString(key, fallback string) string {
	if v, ok := c.Get(key); ok {
		return cast.ToString(v)
	}
	return fallback
}

// GetInt returns the key coerced to an int, or fallback.
func (c *Config) GetInt(key string, fallback int) int {
	if v, ok := c.Get(key); ok {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetBool returns the key coerced to a bool, or fallback.
func (c *Config) GetBool(key string, fallback bool) bool {
	if v, ok := c.Get(key); ok {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return fallback
}

// Bind decodes the merged map onto a struct, applying `default` tags to
// fields the sources left unset.
func (c *Config) Bind(out any) error {
	return c.BindAt("", out)
}

// BindAt binds the subtree at a dotted key onto a struct.
func (c *Config) BindAt(key string, out any) error {
	if err := applyDefaults(out); err != nil {
		return err
	}
	src := any(c.values)
	if key != "" {
		v, ok := c.Get(key)
		if !ok {
			return nil
		}
		src = v
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          c.tag,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return strings.EqualFold(mapKey, fieldName) ||
				strings.EqualFold(mapKey, strings.ReplaceAll(fieldName, "_", ""))
		},
	})
	if err != nil {
		return err
	}
	return dec.Decode(src)
}

// normalizeKeys lower-cases map keys recursively so lookups and merges
// are case-insensitive.
func normalizeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = normalizeKeys(sub)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}
