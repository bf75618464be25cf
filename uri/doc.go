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

// Package uri builds, parses and matches URIs from typed components.
//
// A [Builder] composes a URI from scheme, authority, path segments, query
// parameters and fragment. Components may embed {name} or {name:regex}
// template parameters ([Parameterized]) and the path may use the * ? **
// glob shorthands ([PathPattern]). Building substitutes parameter values
// and percent-encodes them according to per-component RFC 3986 rules;
// building a [Pattern] instead synthesizes a regular expression with one
// capture group per parameter.
//
// Patterns support matching via [Pattern.Matcher] and a four-valued
// inclusion relation via [Pattern.Includes], used to decide whether one
// pattern covers every input another pattern accepts.
//
// Example:
//
//	b, _ := uri.Parse("/book/{id:\\d+}", uri.Parameterized)
//	s, _ := b.Build("42")            // "/book/42"
//	p, _ := b.BuildPathPattern()
//	m := p.Matcher("/book/7")
//	m.Matches()                      // true
//	m.ParameterValue("id")           // "7"
package uri
