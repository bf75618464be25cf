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
)

func TestEscapePerComponent(t *testing.T) {
	tests := []struct {
		name string
		kind componentKind
		in   string
		want string
	}{
		{"path keeps pchar", kindPathSegment, "a:b@c", "a:b@c"},
		{"path encodes slash", kindPathSegment, "a/b", "a%2Fb"},
		{"query keeps slash and question mark", kindQuery, "a/b?c", "a/b?c"},
		{"space encodes", kindPathSegment, "a b", "a%20b"},
		{"existing triplet preserved", kindPathSegment, "a%2Fb", "a%2Fb"},
		{"bare percent encodes", kindPathSegment, "100%", "100%25"},
		{"non-ascii encodes as utf-8 octets", kindPathSegment, "é", "%C3%A9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.escape(tt.in))
		})
	}
}

func TestEscapeValueNeverTrustsTriplets(t *testing.T) {
	// A substituted value is opaque data: an embedded %2F must not
	// survive as an encoded slash.
	assert.Equal(t, "a%252Fb", kindPathSegment.escapeValue("a%2Fb"))
	assert.Equal(t, "a%2Fb", kindPathSegment.escapeValue("a/b"))
}

func TestUnescape(t *testing.T) {
	assert.Equal(t, "a/b", Unescape("a%2Fb"))
	assert.Equal(t, "a/b", Unescape("a%2fb"), "lower hex accepted")
	assert.Equal(t, "%2F", Unescape("%252F"), "one level only")
	assert.Equal(t, "100%", Unescape("100%"), "invalid triplet kept")
	assert.Equal(t, "plain", Unescape("plain"))
}
