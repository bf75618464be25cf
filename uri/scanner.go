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
	"fmt"
	"strings"
)

// Parameter is a template hole extracted from a component value.
// An empty Name marks an unnamed parameter: it still captures during
// matching but is skipped from the name→value mapping.
type Parameter struct {
	Name    string
	Pattern string
}

// tokenKind classifies a scanned fragment of a component value.
type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokParam
	tokStar       // * glob: [^/]* within one segment
	tokQuestion   // ? glob: exactly one non-slash character
	tokDoubleStar // ** glob: zero or more whole segments
)

// token is one scanned fragment: a literal run, a {name:regex} parameter,
// or a glob shorthand. A tokDoubleStar may carry a name when written as
// {name:**}.
type token struct {
	kind    tokenKind
	literal string
	name    string
	regex   string // custom regex, "" when the parameter is unconstrained
}

// defaultRegex is the pattern of an unconstrained parameter for the kind.
func defaultRegex(kind componentKind) string {
	if kind == kindPathSegment {
		return "[^/]*"
	}
	return ".*"
}

// validName reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b == '_':
		case b >= '0' && b <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// scan tokenizes a raw component value. Template parsing requires the
// Parameterized flag; glob shorthands require PathPattern and a path
// segment context. Without either, the whole value is a single literal.
func scan(raw string, flags Flags, kind componentKind) ([]token, error) {
	params := flags.Has(Parameterized)
	globs := flags.Has(PathPattern) && kind == kindPathSegment
	if !params && !globs {
		return []token{{kind: tokLiteral, literal: raw}}, nil
	}

	var (
		tokens []token
		lit    strings.Builder
	)
	flushLit := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, token{kind: tokLiteral, literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		b := raw[i]
		switch {
		case b == '\\' && i+1 < len(raw) && (raw[i+1] == '{' || raw[i+1] == '}'):
			lit.WriteByte(raw[i+1])
			i++
		case params && b == '{':
			flushLit()
			tok, next, err := scanTemplate(raw, i, kind)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case params && b == '}':
			return nil, fmt.Errorf("%w: unmatched '}' in %q", ErrMalformedTemplate, raw)
		case globs && b == '*':
			flushLit()
			if i+1 < len(raw) && raw[i+1] == '*' {
				tokens = append(tokens, token{kind: tokDoubleStar})
				i++
			} else {
				tokens = append(tokens, token{kind: tokStar})
			}
		case globs && b == '?':
			flushLit()
			tokens = append(tokens, token{kind: tokQuestion})
		default:
			lit.WriteByte(b)
		}
	}
	flushLit()
	return tokens, nil
}

// scanTemplate parses one {name[:regex]} template starting at the '{' at
// raw[start]. It returns the parameter token and the index of the closing
// '}'. Braces inside the regex nest when balanced, and \{ \} escapes are
// carried through verbatim.
func scanTemplate(raw string, start int, kind componentKind) (token, int, error) {
	i := start + 1
	nameStart := i
	for i < len(raw) && raw[i] != ':' && raw[i] != '}' && raw[i] != '{' {
		i++
	}
	if i >= len(raw) || raw[i] == '{' {
		return token{}, 0, fmt.Errorf("%w: unterminated template in %q", ErrMalformedTemplate, raw)
	}
	name := raw[nameStart:i]
	if name != "" && !validName(name) {
		return token{}, 0, fmt.Errorf("%w: %q", ErrInvalidParameterName, name)
	}

	if raw[i] == '}' {
		if name == "" {
			return token{}, 0, fmt.Errorf("%w: empty template in %q", ErrMalformedTemplate, raw)
		}
		return token{kind: tokParam, name: name}, i, nil
	}

	// Custom regex follows the ':'. The template closes on the '}' that
	// rebalances the opening brace.
	var regex strings.Builder
	depth := 1
	for i++; i < len(raw); i++ {
		b := raw[i]
		switch {
		case b == '\\' && i+1 < len(raw):
			regex.WriteByte(b)
			regex.WriteByte(raw[i+1])
			i++
		case b == '{':
			depth++
			regex.WriteByte(b)
		case b == '}':
			depth--
			if depth == 0 {
				r := regex.String()
				if r == "" {
					return token{}, 0, fmt.Errorf("%w: empty regex in %q", ErrMalformedTemplate, raw)
				}
				switch r {
				case "**":
					if kind != kindPathSegment {
						return token{}, 0, fmt.Errorf("%w: ** outside path in %q", ErrWildcardMisuse, raw)
					}
					return token{kind: tokDoubleStar, name: name}, i, nil
				case "*":
					return token{kind: tokStar, name: name}, i, nil
				case "?":
					return token{kind: tokQuestion, name: name}, i, nil
				}
				return token{kind: tokParam, name: name, regex: r}, i, nil
			}
			regex.WriteByte(b)
		default:
			regex.WriteByte(b)
		}
	}
	return token{}, 0, fmt.Errorf("%w: unterminated template in %q", ErrMalformedTemplate, raw)
}

// scanParameters returns the parameters of a raw value in source order.
func scanParameters(raw string, flags Flags, kind componentKind) ([]Parameter, error) {
	tokens, err := scan(raw, flags, kind)
	if err != nil {
		return nil, err
	}
	var out []Parameter
	for _, t := range tokens {
		if p, ok := t.parameter(kind); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// parameter returns the Parameter a token captures as, if any. Anonymous
// glob tokens (* ? ** written without a {name:…} wrapper) capture as
// unnamed parameters.
func (t token) parameter(kind componentKind) (Parameter, bool) {
	switch t.kind {
	case tokParam:
		r := t.regex
		if r == "" {
			r = defaultRegex(kind)
		}
		return Parameter{Name: t.name, Pattern: r}, true
	case tokStar:
		return Parameter{Name: t.name, Pattern: "[^/]*"}, true
	case tokQuestion:
		return Parameter{Name: t.name, Pattern: "[^/]"}, true
	case tokDoubleStar:
		return Parameter{Name: t.name, Pattern: "[^/]*(?:/[^/]*)*"}, true
	}
	return Parameter{}, false
}
