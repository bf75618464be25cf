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

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(
		WithHandler(JSONHandler),
		WithOutput(&buf),
		WithAttrs(slog.String("component", "server")),
	)
	logger.Info("started", "port", 8080)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "started", record["msg"])
	assert.Equal(t, float64(8080), record["port"])
	assert.Equal(t, "server", record["component"])
}

func TestNewTextHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithLevel(slog.LevelWarn))

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "emitted")
}

func TestNoopIsSilentAndShared(t *testing.T) {
	assert.Same(t, Noop(), Noop())
	Noop().Error("nothing happens")
}

func TestRotationWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "velox.log")
	logger := New(
		WithHandler(JSONHandler),
		WithRotation(Rotation{Path: path, MaxSizeMB: 1}),
	)
	logger.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
