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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathPattern(t *testing.T, path string) *Pattern {
	t.Helper()
	b, err := Parse(path, Parameterized|PathPattern)
	require.NoError(t, err)
	p, err := b.BuildPathPattern()
	require.NoError(t, err)
	return p
}

func TestPatternMatching(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		input   string
		matches bool
		params  map[string]string
	}{
		{
			name:    "literal",
			pattern: "/a/b",
			input:   "/a/b",
			matches: true,
			params:  map[string]string{},
		},
		{
			name:    "named parameter",
			pattern: "/book/{id:\\d+}",
			input:   "/book/42",
			matches: true,
			params:  map[string]string{"id": "42"},
		},
		{
			name:    "named parameter rejects non-matching value",
			pattern: "/book/{id:\\d+}",
			input:   "/book/x",
			matches: false,
		},
		{
			name:    "default parameter stays within segment",
			pattern: "/book/{id}",
			input:   "/book/4/2",
			matches: false,
		},
		{
			name:    "star glob within segment",
			pattern: "/files/*.txt",
			input:   "/files/notes.txt",
			matches: true,
		},
		{
			name:    "star glob does not cross slash",
			pattern: "/files/*",
			input:   "/files/a/b",
			matches: false,
		},
		{
			name:    "question glob single character",
			pattern: "/v?",
			input:   "/v1",
			matches: true,
		},
		{
			name:    "question glob requires exactly one",
			pattern: "/v?",
			input:   "/v12",
			matches: false,
		},
		{
			name:    "double star crosses segments",
			pattern: "/a/**",
			input:   "/a/b/c",
			matches: true,
		},
		{
			name:    "double star matches zero segments",
			pattern: "/a/**",
			input:   "/a",
			matches: true,
		},
		{
			name:    "named double star captures remainder",
			pattern: "/static/{file:**}",
			input:   "/static/css/site.css",
			matches: true,
			params:  map[string]string{"file": "css/site.css"},
		},
		{
			name:    "mixed literal and parameter in one segment",
			pattern: "/a/_{p:.*}_",
			input:   "/a/_xyz_",
			matches: true,
			params:  map[string]string{"p": "xyz"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := pathPattern(t, tt.pattern).Matcher(tt.input)
			assert.Equal(t, tt.matches, m.Matches())
			if tt.matches && tt.params != nil {
				assert.Equal(t, tt.params, m.Parameters())
			}
		})
	}
}

func TestPatternHexCaseInsensitive(t *testing.T) {
	b, err := Parse("/a%2Fb", 0)
	require.NoError(t, err)
	p, err := b.BuildPathPattern()
	require.NoError(t, err)

	assert.True(t, p.Matcher("/a%2Fb").Matches())
	assert.True(t, p.Matcher("/a%2fb").Matches())
	assert.False(t, p.Matcher("/a/b").Matches(), "encoded slash is not a separator")
	assert.False(t, p.Matcher("/a%252Fb").Matches(), "double-encoded sequences are not decoded")
}

func TestPatternUnnamedCaptures(t *testing.T) {
	p := pathPattern(t, "/a/{:[a-z]+}/{id:\\d+}")
	m := p.Matcher("/a/bc/7")
	require.True(t, m.Matches())

	// The unnamed hole occupies group 1 but is absent from the mapping.
	assert.Equal(t, "bc", m.Group(1))
	assert.Equal(t, map[string]string{"id": "7"}, m.Parameters())
	_, ok := m.LookupParameter("")
	assert.False(t, ok)
}

func TestPatternFullURI(t *testing.T) {
	b, err := Parse("http://{env}.example.com/api/{v}", Parameterized)
	require.NoError(t, err)
	p, err := b.BuildPattern()
	require.NoError(t, err)

	m := p.Matcher("http://staging.example.com/api/v2")
	require.True(t, m.Matches())
	assert.Equal(t, "staging", m.ParameterValue("env"))
	assert.Equal(t, "v2", m.ParameterValue("v"))

	assert.False(t, p.Matcher("https://staging.example.com/api/v2").Matches())
}

func TestMatcherSpecificity(t *testing.T) {
	input := "/a/b/c"
	ranked := []string{
		"/a/b/c",         // all literal
		"/a/{p:[b]}/c",   // fewer literals; ahead of /a/*/c on unnamed wildcards
		"/a/*/c",
		"/a/**",
	}
	matchers := make([]*Matcher, 0, len(ranked))
	for _, pat := range ranked {
		m := pathPattern(t, pat).Matcher(input)
		require.True(t, m.Matches(), pat)
		matchers = append(matchers, m)
	}

	shuffled := []*Matcher{matchers[3], matchers[1], matchers[0], matchers[2]}
	sort.Slice(shuffled, func(i, j int) bool { return shuffled[i].Compare(shuffled[j]) < 0 })
	for i, m := range shuffled {
		assert.Same(t, matchers[i], m, "rank %d", i)
	}
}

func TestMatcherCompareRules(t *testing.T) {
	input := "/a/b"

	t.Run("more literals first", func(t *testing.T) {
		lit := pathPattern(t, "/a/b").Matcher(input)
		wild := pathPattern(t, "/a/*").Matcher(input)
		assert.Negative(t, lit.Compare(wild))
		assert.Positive(t, wild.Compare(lit))
	})

	t.Run("double star least specific", func(t *testing.T) {
		one := pathPattern(t, "/*/*").Matcher(input)
		multi := pathPattern(t, "/**").Matcher(input)
		assert.Negative(t, one.Compare(multi))
	})

	t.Run("custom regex beats default wildcard", func(t *testing.T) {
		custom := pathPattern(t, "/a/{p:[a-z]+}").Matcher(input)
		wild := pathPattern(t, "/a/{p}").Matcher(input)
		assert.Negative(t, custom.Compare(wild))
	})

	t.Run("equal patterns tie", func(t *testing.T) {
		a := pathPattern(t, "/a/{p}").Matcher(input)
		b := pathPattern(t, "/a/{q}").Matcher(input)
		assert.Zero(t, a.Compare(b))
	})
}

func TestPatternParameterNames(t *testing.T) {
	p := pathPattern(t, "/{a}/{:x+}/{b:\\d+}")
	assert.Equal(t, []string{"a", "", "b"}, p.ParameterNames())
}
