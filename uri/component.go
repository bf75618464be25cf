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
	"regexp"
	"strings"
)

// component is one immutable URI component value: the raw text, its
// scanned token form, and the grammar kind that governs its encoding.
type component struct {
	kind   componentKind
	raw    string
	tokens []token
}

func newComponent(kind componentKind, raw string, flags Flags) (*component, error) {
	tokens, err := scan(raw, flags, kind)
	if err != nil {
		return nil, err
	}
	c := &component{kind: kind, raw: raw, tokens: tokens}
	// Scheme and port have no percent-encoding in their grammar, so their
	// literal text is validated strictly instead of encoded lazily.
	switch kind {
	case kindScheme:
		if err := checkScheme(c); err != nil {
			return nil, err
		}
	case kindPort:
		if err := checkPort(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func checkScheme(c *component) error {
	for _, t := range c.tokens {
		if t.kind != tokLiteral {
			continue
		}
		for i := 0; i < len(t.literal); i++ {
			b := t.literal[i]
			ok := b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
				b >= '0' && b <= '9' || b == '+' || b == '-' || b == '.'
			if !ok {
				return fmt.Errorf("%w: %q in scheme %q", ErrInvalidCharacter, rune(b), c.raw)
			}
		}
	}
	return nil
}

func checkPort(c *component) error {
	for _, t := range c.tokens {
		if t.kind != tokLiteral {
			continue
		}
		for i := 0; i < len(t.literal); i++ {
			if t.literal[i] < '0' || t.literal[i] > '9' {
				return fmt.Errorf("%w: %q in port %q", ErrInvalidCharacter, rune(t.literal[i]), c.raw)
			}
		}
	}
	return nil
}

// rawValue returns the component text before encoding, template holes
// included.
func (c *component) rawValue() string {
	return c.raw
}

// parameters returns the component's template parameters in source order.
func (c *component) parameters() []Parameter {
	var out []Parameter
	for _, t := range c.tokens {
		if p, ok := t.parameter(c.kind); ok {
			out = append(out, p)
		}
	}
	return out
}

// isLiteral reports whether the component carries no template holes.
func (c *component) isLiteral() bool {
	for _, t := range c.tokens {
		if t.kind != tokLiteral {
			return false
		}
	}
	return true
}

// encodedValue percent-encodes the component's literal text, keeping the
// template holes verbatim.
func (c *component) encodedValue() string {
	var sb strings.Builder
	for _, t := range c.tokens {
		switch t.kind {
		case tokLiteral:
			sb.WriteString(c.kind.escape(t.literal))
		case tokStar:
			sb.WriteString(hole(t.name, "*"))
		case tokQuestion:
			sb.WriteString(hole(t.name, "?"))
		case tokDoubleStar:
			sb.WriteString(hole(t.name, "**"))
		case tokParam:
			if t.regex == "" {
				sb.WriteString("{" + t.name + "}")
			} else {
				sb.WriteString("{" + t.name + ":" + t.regex + "}")
			}
		}
	}
	return sb.String()
}

func hole(name, glob string) string {
	if name == "" {
		return glob
	}
	return "{" + name + ":" + glob + "}"
}

// substituted resolves the component against bound values, encoding each
// substituted value per the component grammar when escape is true. The
// binding consumes values positionally or by name; see valueSource.
func (c *component) substituted(values *valueSource, escape bool) (string, error) {
	var sb strings.Builder
	for _, t := range c.tokens {
		if t.kind == tokLiteral {
			sb.WriteString(c.kind.escape(t.literal))
			continue
		}
		v, err := values.next(t.name)
		if err != nil {
			return "", err
		}
		if escape {
			sb.WriteString(c.kind.escapeValue(v))
		} else {
			sb.WriteString(v)
		}
	}
	return sb.String(), nil
}

// patternFragment appends the component's regex fragment to sb, recording
// one entry in names per capture group (empty string for unnamed holes).
func (c *component) patternFragment(sb *strings.Builder, names *[]string) {
	for _, t := range c.tokens {
		if t.kind == tokLiteral {
			sb.WriteString(quoteEncodedLiteral(c.kind.escape(t.literal)))
			continue
		}
		p, _ := t.parameter(c.kind)
		sb.WriteString("(")
		sb.WriteString(p.Pattern)
		sb.WriteString(")")
		*names = append(*names, p.Name)
	}
}

// quoteEncodedLiteral quotes an already percent-encoded literal for use
// inside a pattern. Percent triplets become case-insensitive so the
// matcher accepts %2f and %2F alike.
func quoteEncodedLiteral(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '%' && i+2 < len(s) && isHexDigit(s[i+1]) && isHexDigit(s[i+2]) {
			sb.WriteByte('%')
			sb.WriteString(hexDigitClass(s[i+1]))
			sb.WriteString(hexDigitClass(s[i+2]))
			i += 2
			continue
		}
		sb.WriteString(regexp.QuoteMeta(string(rune(b))))
	}
	return sb.String()
}

func hexDigitClass(b byte) string {
	switch {
	case b >= 'a' && b <= 'f':
		return "[" + string(b) + string(b-'a'+'A') + "]"
	case b >= 'A' && b <= 'F':
		return "[" + string(b-'A'+'a') + string(b) + "]"
	default:
		return string(b)
	}
}

// valueSource binds template values either positionally or by name.
type valueSource struct {
	positional []string
	pos        int
	named      map[string]string
}

func positionalValues(values []string) *valueSource {
	return &valueSource{positional: values}
}

func namedValues(values map[string]string) *valueSource {
	return &valueSource{named: values}
}

// next returns the value bound to the next template hole. Positional
// sources consume left to right regardless of name; named sources require
// a named hole with a present key.
func (s *valueSource) next(name string) (string, error) {
	if s.named != nil {
		if name == "" {
			return "", fmt.Errorf("%w: unnamed parameter cannot bind by name", ErrMissingValue)
		}
		v, ok := s.named[name]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrMissingValue, name)
		}
		return v, nil
	}
	if s.pos >= len(s.positional) {
		if name != "" {
			return "", fmt.Errorf("%w: %q", ErrMissingValue, name)
		}
		return "", fmt.Errorf("%w: parameter %d", ErrMissingValue, s.pos)
	}
	v := s.positional[s.pos]
	s.pos++
	return v, nil
}
