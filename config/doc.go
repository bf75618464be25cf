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

// Package config loads the platform configuration from layered sources:
// YAML, TOML or JSON files, environment variables, and literal content.
// Later sources override earlier ones key by key; the merged map binds
// onto typed structs, with defaults applied from struct tags.
//
// Example:
//
//	cfg, err := config.New(
//	    config.WithFile("velox.yaml"),
//	    config.WithEnv("VELOX"),
//	)
//	if err != nil { ... }
//	var web config.Web
//	if err := cfg.Bind(&web); err != nil { ... }
package config
