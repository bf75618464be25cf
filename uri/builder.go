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

// queryParam is one name/value pair of the keyed query view. The value
// may carry template holes; the name is literal.
type queryParam struct {
	name  string
	value *component
}

// Builder composes a URI or URI pattern from typed components. Mutators
// append or override components and return the builder for chaining; the
// first error latches and surfaces from the Build methods. Flags and the
// request-target form are fixed at construction.
type Builder struct {
	flags Flags
	form  Form
	err   error

	scheme    *component
	userInfo  *component
	host      *component
	port      *component
	authority *component // opaque authority, overrides userInfo/host/port

	absolute bool
	segments []*component
	trailing bool

	rawQuery *component // opaque query, exclusive with query
	query    []queryParam

	fragment *component
}

// NewBuilder returns an empty builder with the given flags.
func NewBuilder(flags Flags) *Builder {
	return &Builder{flags: flags, form: FormFull}
}

// NewTarget returns an empty builder restricted to a request-target form.
// FormPathQuery rejects the PathPattern flag.
func NewTarget(form Form, flags Flags) (*Builder, error) {
	if form == FormPathQuery && flags.Has(PathPattern) {
		return nil, fmt.Errorf("%w: path_query form with path patterns", ErrConflictingForm)
	}
	return &Builder{flags: flags, form: form}, nil
}

// Flags returns the builder's flags.
func (b *Builder) Flags() Flags { return b.flags }

// Err returns the first error recorded by a mutator, if any.
func (b *Builder) Err() error { return b.err }

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	c := *b
	c.segments = append([]*component(nil), b.segments...)
	c.query = append([]queryParam(nil), b.query...)
	return &c
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *Builder) set(kind componentKind, raw string, dst **component) *Builder {
	if b.err != nil {
		return b
	}
	if !b.form.allows(kind) {
		return b.fail(fmt.Errorf("%w: %s in %s form", ErrConflictingForm, kind, b.form))
	}
	c, err := newComponent(kind, raw, b.flags)
	if err != nil {
		return b.fail(err)
	}
	*dst = c
	return b
}

// Scheme sets the scheme component. A host-less URI keeps the opaque
// scheme:path form; setting a host later promotes it to hierarchical.
func (b *Builder) Scheme(scheme string) *Builder {
	return b.set(kindScheme, scheme, &b.scheme)
}

// UserInfo sets the user-info component. It is dropped at build time when
// no host is set.
func (b *Builder) UserInfo(userInfo string) *Builder {
	return b.set(kindUserInfo, userInfo, &b.userInfo)
}

// Host sets the host component, accepting registered names and IP
// literals.
func (b *Builder) Host(host string) *Builder {
	return b.set(kindHost, host, &b.host)
}

// Port sets the port component. The port may itself be a template.
func (b *Builder) Port(port string) *Builder {
	return b.set(kindPort, port, &b.port)
}

// Authority sets an opaque authority, overriding any user-info, host and
// port previously set.
func (b *Builder) Authority(authority string) *Builder {
	b.set(kindAuthority, authority, &b.authority)
	if b.err == nil {
		b.userInfo, b.host, b.port = nil, nil, nil
	}
	return b
}

// Path appends a slash-separated path. A leading slash marks the path
// absolute when the builder has none yet, and clears a pre-existing
// trailing slash otherwise; a trailing slash is kept as the
// trailing-slash marker.
func (b *Builder) Path(path string) *Builder {
	if b.err != nil || path == "" {
		return b
	}
	if !b.form.allows(kindPathSegment) {
		return b.fail(fmt.Errorf("%w: path in %s form", ErrConflictingForm, b.form))
	}
	rest := path
	if strings.HasPrefix(rest, "/") {
		if len(b.segments) == 0 {
			b.absolute = true
		}
		b.trailing = false
		rest = rest[1:]
	}
	if rest == "" {
		b.trailing = true
		return b
	}
	trailing := strings.HasSuffix(rest, "/")
	rest = strings.TrimSuffix(rest, "/")
	for _, seg := range strings.Split(rest, "/") {
		if b = b.Segment(seg); b.err != nil {
			return b
		}
	}
	b.trailing = trailing
	return b
}

// Segment appends one path segment. An empty segment sets the
// trailing-slash marker.
func (b *Builder) Segment(segment string) *Builder {
	if b.err != nil {
		return b
	}
	if !b.form.allows(kindPathSegment) {
		return b.fail(fmt.Errorf("%w: path in %s form", ErrConflictingForm, b.form))
	}
	if segment == "" {
		b.trailing = true
		return b
	}
	c, err := newComponent(kindPathSegment, segment, b.flags)
	if err != nil {
		return b.fail(err)
	}
	if err := checkExclusive(c); err != nil {
		return b.fail(err)
	}
	b.trailing = false
	b.segments = append(b.segments, c)
	return b
}

// checkExclusive rejects a ** glob mixed with anything else in a segment:
// a multi-segment wildcard must be the entire segment.
func checkExclusive(c *component) error {
	for _, t := range c.tokens {
		if t.kind == tokDoubleStar && len(c.tokens) > 1 {
			return fmt.Errorf("%w: %q", ErrWildcardMisuse, c.raw)
		}
	}
	return nil
}

// Query sets an opaque raw query, replacing the parameter-keyed view.
func (b *Builder) Query(raw string) *Builder {
	b.set(kindQuery, raw, &b.rawQuery)
	if b.err == nil {
		b.query = nil
	}
	return b
}

// QueryParameter appends a query parameter. A previously set opaque query
// is reparsed into the keyed view first, so later parameters append to
// it.
func (b *Builder) QueryParameter(name, value string) *Builder {
	if b.err != nil {
		return b
	}
	if !b.form.allows(kindQueryParam) {
		return b.fail(fmt.Errorf("%w: query in %s form", ErrConflictingForm, b.form))
	}
	if b.rawQuery != nil {
		raw := b.rawQuery.rawValue()
		b.rawQuery = nil
		for _, pair := range strings.Split(raw, "&") {
			if pair == "" {
				continue
			}
			n, v, _ := strings.Cut(pair, "=")
			if b = b.appendQueryParam(n, v); b.err != nil {
				return b
			}
		}
	}
	return b.appendQueryParam(name, value)
}

func (b *Builder) appendQueryParam(name, value string) *Builder {
	if b.err != nil {
		return b
	}
	if !b.form.allows(kindQueryParam) {
		return b.fail(fmt.Errorf("%w: query in %s form", ErrConflictingForm, b.form))
	}
	c, err := newComponent(kindQueryParam, value, b.flags)
	if err != nil {
		return b.fail(err)
	}
	b.query = append(b.query, queryParam{name: name, value: c})
	return b
}

// Fragment sets the fragment component.
func (b *Builder) Fragment(fragment string) *Builder {
	return b.set(kindFragment, fragment, &b.fragment)
}

// Parameters returns the builder's template parameters in component
// order: scheme, user info, host, port, path segments, query, fragment.
func (b *Builder) Parameters() []Parameter {
	var out []Parameter
	for _, c := range b.components() {
		out = append(out, c.parameters()...)
	}
	return out
}

// components returns the set components in substitution order.
func (b *Builder) components() []*component {
	var out []*component
	add := func(c *component) {
		if c != nil {
			out = append(out, c)
		}
	}
	add(b.scheme)
	if b.authority != nil {
		add(b.authority)
	} else if b.host != nil {
		// User info and port are dropped without a host, so their
		// parameters never bind.
		add(b.userInfo)
		add(b.host)
		add(b.port)
	}
	for _, s := range b.normalizedSegments() {
		out = append(out, s)
	}
	if b.rawQuery != nil {
		add(b.rawQuery)
	} else {
		for _, q := range b.query {
			out = append(out, q.value)
		}
	}
	add(b.fragment)
	return out
}

// normalizedSegments returns the path segments, collapsing "." and ".."
// when the Normalized flag is set. ".." pops the preceding segment when
// one exists; surplus ".." segments survive unchanged.
func (b *Builder) normalizedSegments() []*component {
	if !b.flags.Has(Normalized) {
		return b.segments
	}
	out := make([]*component, 0, len(b.segments))
	for _, seg := range b.segments {
		switch seg.rawValue() {
		case ".":
		case "..":
			if n := len(out); n > 0 && out[n-1].rawValue() != ".." {
				out = out[:n-1]
			} else {
				out = append(out, seg)
			}
		default:
			out = append(out, seg)
		}
	}
	return out
}

// hierarchical reports whether the built URI carries an authority.
func (b *Builder) hierarchical() bool {
	return b.authority != nil || b.host != nil
}

// Build substitutes positional values, percent-encoding each substituted
// value per its component grammar, and returns the URI string.
func (b *Builder) Build(values ...string) (string, error) {
	return b.buildString(positionalValues(values), true)
}

// BuildMap is Build with values bound by parameter name.
func (b *Builder) BuildMap(values map[string]string) (string, error) {
	return b.buildString(namedValues(values), true)
}

// BuildUnescaped substitutes positional values without encoding them, so
// reserved characters pass through into the result.
func (b *Builder) BuildUnescaped(values ...string) (string, error) {
	return b.buildString(positionalValues(values), false)
}

// BuildUnescapedMap is BuildUnescaped with values bound by name.
func (b *Builder) BuildUnescapedMap(values map[string]string) (string, error) {
	return b.buildString(namedValues(values), false)
}

// BuildPath substitutes positional values and returns the path component
// only.
func (b *Builder) BuildPath(values ...string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.buildPath(positionalValues(values), true)
}

// BuildQuery substitutes positional values and returns the query
// component only, without the leading '?'.
func (b *Builder) BuildQuery(values ...string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.buildQuery(positionalValues(values), true)
}

// BuildRawString returns the whole URI with literal text encoded and
// template holes kept verbatim.
func (b *Builder) BuildRawString() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.assemble(
		rawOrEmpty(b.scheme),
		b.rawAuthority(),
		b.rawPath(),
		b.rawQueryString(),
		rawOrEmpty(b.fragment),
	), nil
}

// BuildRawPath returns the path with template holes kept verbatim.
func (b *Builder) BuildRawPath() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.rawPath(), nil
}

// BuildRawQuery returns the query with parameter templates emitted
// verbatim.
func (b *Builder) BuildRawQuery() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return b.rawQueryString(), nil
}

func rawOrEmpty(c *component) string {
	if c == nil {
		return ""
	}
	return c.encodedValue()
}

func (b *Builder) rawAuthority() string {
	if b.authority != nil {
		return b.authority.encodedValue()
	}
	if b.host == nil {
		return ""
	}
	var sb strings.Builder
	if b.userInfo != nil {
		sb.WriteString(b.userInfo.encodedValue())
		sb.WriteByte('@')
	}
	sb.WriteString(b.host.encodedValue())
	if b.port != nil {
		sb.WriteByte(':')
		sb.WriteString(b.port.encodedValue())
	}
	return sb.String()
}

func (b *Builder) rawPath() string {
	var parts []string
	for _, seg := range b.normalizedSegments() {
		parts = append(parts, seg.encodedValue())
	}
	return b.joinPath(parts)
}

func (b *Builder) rawQueryString() string {
	if b.rawQuery != nil {
		return b.rawQuery.encodedValue()
	}
	var parts []string
	for _, q := range b.query {
		parts = append(parts, kindQueryParam.escape(q.name)+"="+q.value.encodedValue())
	}
	return strings.Join(parts, "&")
}

func (b *Builder) joinPath(parts []string) string {
	var sb strings.Builder
	if b.absolute || (b.hierarchical() && len(parts) > 0) {
		sb.WriteByte('/')
	}
	sb.WriteString(strings.Join(parts, "/"))
	if b.trailing && len(parts) > 0 {
		sb.WriteByte('/')
	}
	return sb.String()
}

func (b *Builder) buildString(values *valueSource, escape bool) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	var scheme, authority string
	var err error
	if b.scheme != nil {
		if scheme, err = b.scheme.substituted(values, escape); err != nil {
			return "", err
		}
	}
	if authority, err = b.buildAuthority(values, escape); err != nil {
		return "", err
	}
	path, err := b.buildPath(values, escape)
	if err != nil {
		return "", err
	}
	query, err := b.buildQuery(values, escape)
	if err != nil {
		return "", err
	}
	var fragment string
	if b.fragment != nil {
		if fragment, err = b.fragment.substituted(values, escape); err != nil {
			return "", err
		}
	}
	return b.assemble(scheme, authority, path, query, fragment), nil
}

func (b *Builder) buildAuthority(values *valueSource, escape bool) (string, error) {
	if b.authority != nil {
		return b.authority.substituted(values, escape)
	}
	if b.host == nil {
		return "", nil
	}
	var sb strings.Builder
	if b.userInfo != nil {
		ui, err := b.userInfo.substituted(values, escape)
		if err != nil {
			return "", err
		}
		sb.WriteString(ui)
		sb.WriteByte('@')
	}
	host, err := b.host.substituted(values, escape)
	if err != nil {
		return "", err
	}
	sb.WriteString(host)
	if b.port != nil {
		port, err := b.port.substituted(values, escape)
		if err != nil {
			return "", err
		}
		sb.WriteByte(':')
		sb.WriteString(port)
	}
	return sb.String(), nil
}

func (b *Builder) buildPath(values *valueSource, escape bool) (string, error) {
	var parts []string
	for _, seg := range b.normalizedSegments() {
		s, err := seg.substituted(values, escape)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return b.joinPath(parts), nil
}

func (b *Builder) buildQuery(values *valueSource, escape bool) (string, error) {
	if b.rawQuery != nil {
		return b.rawQuery.substituted(values, escape)
	}
	var parts []string
	for _, q := range b.query {
		v, err := q.value.substituted(values, escape)
		if err != nil {
			return "", err
		}
		parts = append(parts, kindQueryParam.escape(q.name)+"="+v)
	}
	return strings.Join(parts, "&"), nil
}

// assemble joins resolved components into the final URI string. A scheme
// with no authority keeps the opaque scheme:path form; user info and port
// without a host never reach this point.
func (b *Builder) assemble(scheme, authority, path, query, fragment string) string {
	var sb strings.Builder
	if scheme != "" {
		sb.WriteString(scheme)
		sb.WriteByte(':')
	}
	if b.hierarchical() {
		sb.WriteString("//")
		sb.WriteString(authority)
		if path != "" && !strings.HasPrefix(path, "/") {
			sb.WriteByte('/')
		}
	}
	sb.WriteString(path)
	if query != "" {
		sb.WriteByte('?')
		sb.WriteString(query)
	}
	if fragment != "" {
		sb.WriteByte('#')
		sb.WriteString(fragment)
	}
	return sb.String()
}
