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

// Matcher is the result of applying a pattern to one input. Unnamed
// parameters occupy a capture group but are skipped from the name→value
// mapping.
type Matcher struct {
	pattern *Pattern
	input   string
	groups  []string
	matched bool
}

// Matcher applies the pattern to the input.
func (p *Pattern) Matcher(input string) *Matcher {
	m := &Matcher{pattern: p, input: input}
	if groups := p.re.FindStringSubmatch(input); groups != nil {
		m.matched = true
		m.groups = groups
	}
	return m
}

// Matches reports whether the input matched the pattern.
func (m *Matcher) Matches() bool { return m.matched }

// Input returns the matched input.
func (m *Matcher) Input() string { return m.input }

// Group returns the raw capture group at index i; group 0 is the whole
// match. It returns "" when the input did not match.
func (m *Matcher) Group(i int) string {
	if !m.matched || i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}

// ParameterValue returns the value captured by the named parameter, or ""
// when the parameter is absent or the input did not match.
func (m *Matcher) ParameterValue(name string) string {
	v, _ := m.LookupParameter(name)
	return v
}

// LookupParameter returns the captured value and whether the named
// parameter exists in the pattern.
func (m *Matcher) LookupParameter(name string) (string, bool) {
	if !m.matched || name == "" {
		return "", false
	}
	for i, n := range m.pattern.names {
		if n == name {
			return m.groups[i+1], true
		}
	}
	return "", false
}

// Parameters returns the name→value mapping of named parameters.
func (m *Matcher) Parameters() map[string]string {
	if !m.matched {
		return nil
	}
	out := make(map[string]string, len(m.pattern.names))
	for i, n := range m.pattern.names {
		if n != "" {
			out[n] = m.groups[i+1]
		}
	}
	return out
}

// specificity aggregates the ordering metrics of a pattern: literal
// weight first, then wildcard counts.
type specificity struct {
	literalChars int
	unnamedWild  int
	doubleStars  int
	customRegex  int
}

func (p *Pattern) specificity() specificity {
	var s specificity
	for _, seg := range p.segs {
		for _, t := range seg.tokens {
			switch t.kind {
			case tokLiteral:
				s.literalChars += len(t.literal)
			case tokStar, tokQuestion:
				if t.name == "" {
					s.unnamedWild++
				}
			case tokDoubleStar:
				s.doubleStars++
				if t.name == "" {
					s.unnamedWild++
				}
			case tokParam:
				if t.regex != "" {
					s.customRegex++
				}
			}
		}
	}
	return s
}

// Compare orders two matchers of the same input by pattern specificity:
// the more specific pattern sorts first (negative result). Ordering
// considers, in turn: more literal characters, fewer multi-segment
// wildcards, fewer unnamed wildcards, more custom-regex parameters.
func (m *Matcher) Compare(other *Matcher) int {
	a, b := m.pattern.specificity(), other.pattern.specificity()
	switch {
	case a.literalChars != b.literalChars:
		if a.literalChars > b.literalChars {
			return -1
		}
		return 1
	case a.doubleStars != b.doubleStars:
		if a.doubleStars < b.doubleStars {
			return -1
		}
		return 1
	case a.unnamedWild != b.unnamedWild:
		if a.unnamedWild < b.unnamedWild {
			return -1
		}
		return 1
	case a.customRegex != b.customRegex:
		if a.customRegex > b.customRegex {
			return -1
		}
		return 1
	}
	return 0
}
