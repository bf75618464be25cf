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
	"strings"
)

// Parse splits a URI reference into its components and returns a builder
// holding them. The split follows the RFC 3986 reference grammar but is
// template-aware: delimiters inside {…} templates do not terminate a
// component, so "/a/{p:.*}?x=1" parses the regex dot-star into the path.
// With the PathPattern flag '?' is the single-character glob, so the path
// runs up to the fragment and no query is split off.
func Parse(raw string, flags Flags) (*Builder, error) {
	return parseInto(NewBuilder(flags), raw)
}

// ParseTarget parses a request-target constrained to the given form.
func ParseTarget(raw string, form Form, flags Flags) (*Builder, error) {
	b, err := NewTarget(form, flags)
	if err != nil {
		return nil, err
	}
	return parseInto(b, raw)
}

func parseInto(b *Builder, raw string) (*Builder, error) {
	rest := raw
	templates := b.flags.Has(Parameterized)

	// scheme: text before the first ':' that precedes any '/', '?' or '#'.
	if i := indexOutsideTemplate(rest, ":/?#", templates); i >= 0 && rest[i] == ':' {
		b = b.Scheme(rest[:i])
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := indexOutsideTemplate(rest, "/?#", templates)
		if end < 0 {
			end = len(rest)
		}
		parseAuthority(b, rest[:end])
		rest = rest[end:]
	}

	pathEnd := "?#"
	if b.flags.Has(PathPattern) {
		pathEnd = "#"
	}
	end := indexOutsideTemplate(rest, pathEnd, templates)
	if end < 0 {
		end = len(rest)
	}
	if path := rest[:end]; path != "" {
		b = b.Path(path)
	}
	rest = rest[end:]

	if strings.HasPrefix(rest, "?") {
		rest = rest[1:]
		end = indexOutsideTemplate(rest, "#", templates)
		if end < 0 {
			end = len(rest)
		}
		parseQuery(b, rest[:end])
		rest = rest[end:]
	}

	if strings.HasPrefix(rest, "#") {
		b = b.Fragment(rest[1:])
	}

	if b.err != nil {
		return nil, b.err
	}
	return b, nil
}

func parseAuthority(b *Builder, authority string) {
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		b.UserInfo(authority[:i])
		authority = authority[i+1:]
	}
	host, port := authority, ""
	if strings.HasPrefix(authority, "[") {
		// IP literal: the port separator follows the closing bracket.
		if end := strings.IndexByte(authority, ']'); end >= 0 {
			host = authority[:end+1]
			if rest := authority[end+1:]; strings.HasPrefix(rest, ":") {
				port = rest[1:]
			}
		}
	} else if i := strings.LastIndexByte(authority, ':'); i >= 0 {
		host, port = authority[:i], authority[i+1:]
	}
	b.Host(host)
	if port != "" {
		b.Port(port)
	}
}

// parseQuery splits a query into the keyed view when it carries '='
// separated pairs; anything else stays an opaque raw query.
func parseQuery(b *Builder, query string) {
	if query == "" {
		return
	}
	if indexOutsideTemplate(query, "=", b.flags.Has(Parameterized)) < 0 {
		b.Query(query)
		return
	}
	for _, pair := range splitOutsideTemplate(query, '&', b.flags.Has(Parameterized)) {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		b.appendQueryParam(name, value)
	}
}

// indexOutsideTemplate returns the index of the first byte of chars found
// at template depth zero, or -1. Escaped \{ \} braces do not affect the
// depth.
func indexOutsideTemplate(s, chars string, templates bool) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '\\' && i+1 < len(s):
			i++
		case templates && b == '{':
			depth++
		case templates && b == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && strings.IndexByte(chars, b) >= 0:
			return i
		}
	}
	return -1
}

func splitOutsideTemplate(s string, sep byte, templates bool) []string {
	var out []string
	start := 0
	depth := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '\\' && i+1 < len(s):
			i++
		case templates && b == '{':
			depth++
		case templates && b == '}':
			if depth > 0 {
				depth--
			}
		case depth == 0 && b == sep:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
