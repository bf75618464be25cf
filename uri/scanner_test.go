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

func TestScanParameters(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		kind  componentKind
		want  []Parameter
		err   error
		flags Flags
	}{
		{
			name:  "named parameter default path regex",
			raw:   "a/{id}",
			kind:  kindPathSegment,
			flags: Parameterized,
			want:  []Parameter{{Name: "id", Pattern: "[^/]*"}},
		},
		{
			name:  "named parameter default query regex",
			raw:   "{term}",
			kind:  kindQueryParam,
			flags: Parameterized,
			want:  []Parameter{{Name: "term", Pattern: ".*"}},
		},
		{
			name:  "custom regex",
			raw:   "{id:\\d+}",
			kind:  kindPathSegment,
			flags: Parameterized,
			want:  []Parameter{{Name: "id", Pattern: "\\d+"}},
		},
		{
			name:  "unnamed parameter",
			raw:   "{:[a-z]+}",
			kind:  kindPathSegment,
			flags: Parameterized,
			want:  []Parameter{{Name: "", Pattern: "[a-z]+"}},
		},
		{
			name:  "balanced braces in regex",
			raw:   "{code:\\d{2,3}}",
			kind:  kindPathSegment,
			flags: Parameterized,
			want:  []Parameter{{Name: "code", Pattern: "\\d{2,3}"}},
		},
		{
			name:  "escaped brace is literal",
			raw:   "a\\{b",
			kind:  kindPathSegment,
			flags: Parameterized,
			want:  nil,
		},
		{
			name:  "glob shorthands",
			raw:   "*",
			kind:  kindPathSegment,
			flags: Parameterized | PathPattern,
			want:  []Parameter{{Name: "", Pattern: "[^/]*"}},
		},
		{
			name:  "question glob",
			raw:   "a?",
			kind:  kindPathSegment,
			flags: Parameterized | PathPattern,
			want:  []Parameter{{Name: "", Pattern: "[^/]"}},
		},
		{
			name:  "named double star",
			raw:   "{rest:**}",
			kind:  kindPathSegment,
			flags: Parameterized,
			want:  []Parameter{{Name: "rest", Pattern: "[^/]*(?:/[^/]*)*"}},
		},
		{
			name:  "unterminated template",
			raw:   "{id",
			kind:  kindPathSegment,
			flags: Parameterized,
			err:   ErrMalformedTemplate,
		},
		{
			name:  "unmatched closing brace",
			raw:   "a}b",
			kind:  kindPathSegment,
			flags: Parameterized,
			err:   ErrMalformedTemplate,
		},
		{
			name:  "empty template",
			raw:   "{}",
			kind:  kindPathSegment,
			flags: Parameterized,
			err:   ErrMalformedTemplate,
		},
		{
			name:  "invalid name leading digit",
			raw:   "{1abc}",
			kind:  kindPathSegment,
			flags: Parameterized,
			err:   ErrInvalidParameterName,
		},
		{
			name:  "invalid name with dash",
			raw:   "{a-b}",
			kind:  kindPathSegment,
			flags: Parameterized,
			err:   ErrInvalidParameterName,
		},
		{
			name:  "no templates without flag",
			raw:   "{id}",
			kind:  kindPathSegment,
			flags: 0,
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanParameters(tt.raw, tt.flags, tt.kind)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanLiteralRuns(t *testing.T) {
	tokens, err := scan("_{p:.*}_", Parameterized, kindPathSegment)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, tokLiteral, tokens[0].kind)
	assert.Equal(t, "_", tokens[0].literal)
	assert.Equal(t, tokParam, tokens[1].kind)
	assert.Equal(t, "p", tokens[1].name)
	assert.Equal(t, ".*", tokens[1].regex)
	assert.Equal(t, tokLiteral, tokens[2].kind)
}

func TestValidName(t *testing.T) {
	assert.True(t, validName("a"))
	assert.True(t, validName("_private"))
	assert.True(t, validName("p1_x"))
	assert.False(t, validName(""))
	assert.False(t, validName("1a"))
	assert.False(t, validName("a-b"))
	assert.False(t, validName("a b"))
}
