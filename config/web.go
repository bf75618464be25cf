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
	"reflect"
	"strconv"
)

// Web is the platform's configuration surface.
type Web struct {
	// ServerHost is the bind address.
	ServerHost string `config:"server_host" default:"0.0.0.0"`
	// ServerPort is the bind port.
	ServerPort int `config:"server_port" default:"8080"`
	// H2CEnabled accepts HTTP/2 cleartext.
	H2CEnabled bool `config:"h2c_enabled" default:"false"`
	// SSLEnabled serves TLS; certificates are supplied externally.
	SSLEnabled bool `config:"ssl_enabled" default:"false"`
	// PoolMaxSize caps each client endpoint's connection pool.
	PoolMaxSize int `config:"pool_max_size" default:"2"`
	// RequestTimeout is the per-request response deadline in
	// milliseconds; 0 disables it.
	RequestTimeout int64 `config:"request_timeout" default:"0"`
	// HTTP1MaxConcurrentRequests is the HTTP/1.1 pipelining depth.
	HTTP1MaxConcurrentRequests int `config:"http1_max_concurrent_requests" default:"10"`
	// HTTP2MaxConcurrentStreams caps streams per HTTP/2 connection.
	HTTP2MaxConcurrentStreams int `config:"http2_max_concurrent_streams" default:"100"`
	// HTTPProtocolVersions lists the enabled versions: "HTTP_1_1",
	// "HTTP_2_0".
	HTTPProtocolVersions []string `config:"http_protocol_versions"`
}

// applyDefaults fills zero-valued fields from `default` struct tags.
func applyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil
	}
	elem := v.Elem()
	t := elem.Type()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		def := t.Field(i).Tag.Get("default")
		if def == "" || !field.CanSet() || !field.IsZero() {
			continue
		}
		if err := setDefault(field, def); err != nil {
			return fmt.Errorf("config: default for %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

func setDefault(field reflect.Value, def string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(def)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(def, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(def)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(def, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported default kind %s", field.Kind())
	}
	return nil
}
