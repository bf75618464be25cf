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

package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComponents(t *testing.T) {
	b, err := Parse("http://jsmith@example.com:8080/a/b?x=1&y=2#frag", 0)
	require.NoError(t, err)

	s, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "http://jsmith@example.com:8080/a/b?x=1&y=2#frag", s)

	path, err := b.BuildPath()
	require.NoError(t, err)
	assert.Equal(t, "/a/b", path)

	query, err := b.BuildQuery()
	require.NoError(t, err)
	assert.Equal(t, "x=1&y=2", query)
}

func TestParseIPLiteral(t *testing.T) {
	b, err := Parse("http://[::1]:8080/a", 0)
	require.NoError(t, err)
	s, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "http://[::1]:8080/a", s)
}

func TestParseOpaqueQuery(t *testing.T) {
	b, err := Parse("/a?opaque-token", 0)
	require.NoError(t, err)
	s, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "/a?opaque-token", s)
}

func TestParseTemplateAwareSplit(t *testing.T) {
	// The '?' and ':' inside the template regex must not terminate the
	// path component.
	b, err := Parse("/a/{p:x?y}?q=1", Parameterized)
	require.NoError(t, err)

	raw, err := b.BuildRawPath()
	require.NoError(t, err)
	assert.Equal(t, "/a/{p:x?y}", raw)

	q, err := b.BuildRawQuery()
	require.NoError(t, err)
	assert.Equal(t, "q=1", q)
}

// Round-trip: parsing a built URI and rebuilding yields the same bytes.
func TestParseRoundTrip(t *testing.T) {
	builders := []struct {
		name   string
		make   func() *Builder
		values map[string]string
	}{
		{
			name: "hierarchical with query and fragment",
			make: func() *Builder {
				return NewBuilder(0).Scheme("https").Host("example.com").
					Path("/a/b/c").QueryParameter("x", "1").Fragment("top")
			},
		},
		{
			name: "relative with templates",
			make: func() *Builder {
				b, _ := Parse("a/{p1}/b/_{p2:.*}_", Parameterized)
				return b
			},
			values: map[string]string{"p1": "1", "p2": "2/b"},
		},
		{
			name: "encoded characters",
			make: func() *Builder {
				return NewBuilder(0).Path("/docs").Segment("a b").QueryParameter("q", "1+1=2")
			},
		},
		{
			name: "trailing slash",
			make: func() *Builder {
				return NewBuilder(0).Host("h").Path("/a/b/")
			},
		},
	}
	for _, tt := range builders {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.make()
			var built string
			var err error
			if tt.values != nil {
				built, err = b.BuildMap(tt.values)
			} else {
				built, err = b.Build()
			}
			require.NoError(t, err)

			reparsed, err := Parse(built, 0)
			require.NoError(t, err)
			again, err := reparsed.Build()
			require.NoError(t, err)
			assert.Equal(t, built, again)
		})
	}
}

func TestParseTargetForms(t *testing.T) {
	t.Run("origin accepts path and query", func(t *testing.T) {
		b, err := ParseTarget("/a/b?x=1", FormOrigin, 0)
		require.NoError(t, err)
		s, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, "/a/b?x=1", s)
	})

	t.Run("path form rejects query", func(t *testing.T) {
		_, err := ParseTarget("/a/b?x=1", FormPath, 0)
		assert.ErrorIs(t, err, ErrConflictingForm)
	})
}
