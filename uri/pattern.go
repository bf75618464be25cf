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

// Pattern is a compiled URI pattern: an anchored regular expression with
// one capture group per template hole, the positional parameter names,
// and the segmented path structure used for inclusion and specificity.
type Pattern struct {
	raw      string
	re       *regexp.Regexp
	names    []string // capture group index-1 → name, "" for unnamed holes
	segs     []patternSegment
	absolute bool
	trailing bool

	// Non-path components for full-URI inclusion. Empty strings when the
	// pattern is path-only.
	prefixRaw     string // scheme://authority, holes verbatim
	suffixRaw     string // ?query#fragment, holes verbatim
	prefixLiteral bool
	suffixLiteral bool
}

// patternSegment is one path segment of a pattern with its scanned
// tokens, kept for the inclusion walk.
type patternSegment struct {
	raw    string // encoded form with holes verbatim
	tokens []token
}

// BuildPathPattern synthesizes a pattern matching the path component
// only.
func (b *Builder) BuildPathPattern() (*Pattern, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := &Pattern{absolute: b.absolute || b.hierarchical(), trailing: b.trailing,
		prefixLiteral: true, suffixLiteral: true}
	var sb strings.Builder
	sb.WriteByte('^')
	if err := b.pathPattern(&sb, p); err != nil {
		return nil, err
	}
	sb.WriteByte('$')
	return compilePattern(p, sb.String())
}

// BuildPattern synthesizes a pattern matching the full URI.
func (b *Builder) BuildPattern() (*Pattern, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := &Pattern{absolute: b.absolute || b.hierarchical(), trailing: b.trailing}
	var sb strings.Builder
	sb.WriteByte('^')

	var prefix strings.Builder
	prefixLiteral := true
	if b.scheme != nil {
		b.scheme.patternFragment(&sb, &p.names)
		sb.WriteByte(':')
		prefix.WriteString(b.scheme.encodedValue() + ":")
		prefixLiteral = prefixLiteral && b.scheme.isLiteral()
	}
	if b.hierarchical() {
		sb.WriteString("//")
		prefix.WriteString("//")
		for _, c := range b.authorityComponents() {
			sep := authoritySeparator(c, b)
			sb.WriteString(regexp.QuoteMeta(sep[0]))
			c.patternFragment(&sb, &p.names)
			sb.WriteString(regexp.QuoteMeta(sep[1]))
			prefix.WriteString(sep[0] + c.encodedValue() + sep[1])
			prefixLiteral = prefixLiteral && c.isLiteral()
		}
	}
	p.prefixRaw, p.prefixLiteral = prefix.String(), prefixLiteral

	if err := b.pathPattern(&sb, p); err != nil {
		return nil, err
	}

	var suffix strings.Builder
	suffixLiteral := true
	if q := b.rawQueryString(); q != "" {
		sb.WriteString(`\?`)
		suffix.WriteString("?" + q)
		if b.rawQuery != nil {
			b.rawQuery.patternFragment(&sb, &p.names)
			suffixLiteral = b.rawQuery.isLiteral()
		} else {
			for i, qp := range b.query {
				if i > 0 {
					sb.WriteString("&")
				}
				sb.WriteString(regexp.QuoteMeta(kindQueryParam.escape(qp.name)) + "=")
				qp.value.patternFragment(&sb, &p.names)
				suffixLiteral = suffixLiteral && qp.value.isLiteral()
			}
		}
	}
	if b.fragment != nil {
		sb.WriteString("#")
		b.fragment.patternFragment(&sb, &p.names)
		suffix.WriteString("#" + b.fragment.encodedValue())
		suffixLiteral = suffixLiteral && b.fragment.isLiteral()
	}
	p.suffixRaw, p.suffixLiteral = suffix.String(), suffixLiteral

	sb.WriteByte('$')
	return compilePattern(p, sb.String())
}

func (b *Builder) authorityComponents() []*component {
	if b.authority != nil {
		return []*component{b.authority}
	}
	var out []*component
	if b.userInfo != nil {
		out = append(out, b.userInfo)
	}
	out = append(out, b.host)
	if b.port != nil {
		out = append(out, b.port)
	}
	return out
}

func authoritySeparator(c *component, b *Builder) [2]string {
	switch c {
	case b.userInfo:
		return [2]string{"", "@"}
	case b.port:
		return [2]string{":", ""}
	default:
		return [2]string{"", ""}
	}
}

// pathPattern appends the path regex and records the segment structure.
// An exclusive ** segment absorbs its leading separator into an optional
// group, so it also matches zero segments: /a/**/c accepts /a/c.
func (b *Builder) pathPattern(sb *strings.Builder, p *Pattern) error {
	segments := b.normalizedSegments()
	if b.absolute && len(segments) == 0 {
		sb.WriteByte('/')
	}
	for i, seg := range segments {
		separated := i > 0 || p.absolute
		if exclusiveDoubleStar(seg) {
			param, _ := seg.tokens[0].parameter(kindPathSegment)
			if separated {
				sb.WriteString("(?:/(" + param.Pattern + "))?")
			} else {
				sb.WriteString("(" + param.Pattern + ")")
			}
			p.names = append(p.names, param.Name)
		} else {
			if separated {
				sb.WriteByte('/')
			}
			seg.patternFragment(sb, &p.names)
		}
		p.segs = append(p.segs, patternSegment{raw: seg.encodedValue(), tokens: seg.tokens})
	}
	if b.trailing && len(segments) > 0 {
		sb.WriteByte('/')
	}
	return nil
}

func exclusiveDoubleStar(c *component) bool {
	return len(c.tokens) == 1 && c.tokens[0].kind == tokDoubleStar
}

func compilePattern(p *Pattern, expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}
	p.re = re
	p.raw = expr
	return p, nil
}

// String returns the synthesized regular expression.
func (p *Pattern) String() string { return p.raw }

// ParameterNames returns the capture-position parameter names; unnamed
// holes appear as empty strings.
func (p *Pattern) ParameterNames() []string {
	return append([]string(nil), p.names...)
}
