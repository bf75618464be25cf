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

// Flags select optional builder behaviors. Flags are captured at
// construction time and are immutable afterwards.
type Flags uint8

const (
	// Parameterized enables {name} and {name:regex} template parsing in
	// component values.
	Parameterized Flags = 1 << iota

	// Normalized eagerly collapses "." and ".." path segments when the
	// URI is built.
	Normalized

	// PathPattern enables the * ? ** glob shorthands in path segments.
	// Mutually exclusive with the FormPathQuery request-target form.
	PathPattern
)

// Has reports whether all flags in mask are set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

// Form constrains which components a request-target builder may carry.
type Form int

const (
	// FormFull places no restriction on components.
	FormFull Form = iota

	// FormOrigin allows the path and query components only.
	FormOrigin

	// FormPath allows the path component only.
	FormPath

	// FormPathQuery allows path and query, rejecting PathPattern globs.
	FormPathQuery
)

// String returns the form name.
func (f Form) String() string {
	switch f {
	case FormOrigin:
		return "origin"
	case FormPath:
		return "path"
	case FormPathQuery:
		return "path_query"
	default:
		return "full"
	}
}

// allows reports whether the form permits the given component kind.
func (f Form) allows(kind componentKind) bool {
	switch f {
	case FormOrigin, FormPathQuery:
		return kind == kindPathSegment || kind == kindQuery || kind == kindQueryParam
	case FormPath:
		return kind == kindPathSegment
	default:
		return true
	}
}
