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

package web

import (
	"strings"
	"sync"

	"github.com/veloxhq/velox/stream"
	"github.com/veloxhq/velox/uri"
)

// bodyMethods are the methods that carry a request body.
var bodyMethods = map[string]struct{}{
	"POST":  {},
	"PUT":   {},
	"PATCH": {},
}

// Request is one inbound (server) or outbound (client) HTTP request: a
// method, an immutable target URI, headers, cookies parsed from the
// cookie headers, lazily parsed query parameters, the peer address, and
// a body for the methods that carry one.
type Request struct {
	method     string
	target     string
	headers    *Headers
	remoteAddr string
	body       *RequestBody

	once    sync.Once
	path    string
	query   map[string][]string
	cookies map[string][]string
}

// NewRequest assembles a request. The body channel is only attached for
// POST, PUT and PATCH; other methods ignore it.
func NewRequest(method, target string, headers *Headers, remoteAddr string, body *stream.Channel) *Request {
	r := &Request{
		method:     strings.ToUpper(method),
		target:     target,
		headers:    headers,
		remoteAddr: remoteAddr,
	}
	if _, ok := bodyMethods[r.method]; ok && body != nil {
		r.body = newRequestBody(body, headers.ContentType())
	}
	return r
}

// Method returns the upper-cased request method.
func (r *Request) Method() string { return r.method }

// Target returns the raw request target.
func (r *Request) Target() string { return r.target }

// Headers returns the request headers.
func (r *Request) Headers() *Headers { return r.headers }

// RemoteAddr returns the peer address.
func (r *Request) RemoteAddr() string { return r.remoteAddr }

// Body returns the request body and whether one is present.
func (r *Request) Body() (*RequestBody, bool) {
	return r.body, r.body != nil
}

// parseTarget lazily splits the target into path and query parameters and
// parses the cookie headers.
func (r *Request) parseTarget() {
	r.once.Do(func() {
		r.query = make(map[string][]string)
		r.path = r.target
		if b, err := uri.Parse(r.target, 0); err == nil {
			if p, err := b.BuildPath(); err == nil {
				r.path = p
			}
		}
		if _, q, found := strings.Cut(r.target, "?"); found {
			for _, pair := range strings.Split(q, "&") {
				if pair == "" {
					continue
				}
				name, value, _ := strings.Cut(pair, "=")
				r.query[name] = append(r.query[name], uri.Unescape(value))
			}
		}
		r.cookies = parseCookies(r.headers)
	})
}

// Path returns the path component of the target.
func (r *Request) Path() string {
	r.parseTarget()
	return r.path
}

// QueryParameter returns the first value of the named query parameter.
func (r *Request) QueryParameter(name string) (string, bool) {
	r.parseTarget()
	values := r.query[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// QueryParameters returns every query parameter in a name→ordered-values
// map.
func (r *Request) QueryParameters() map[string][]string {
	r.parseTarget()
	return r.query
}

// Cookies returns the request cookies as a name→ordered-values map.
func (r *Request) Cookies() map[string][]string {
	r.parseTarget()
	return r.cookies
}

// Cookie returns the first value of the named cookie.
func (r *Request) Cookie(name string) (string, bool) {
	r.parseTarget()
	values := r.cookies[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}
