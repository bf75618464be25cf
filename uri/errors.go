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

import "errors"

// Sentinel errors reported by the builder and scanner. Callers test them
// with errors.Is; the wrapped message carries the offending input.
var (
	// ErrMalformedTemplate reports an unterminated or unbalanced {…}
	// template in a component value.
	ErrMalformedTemplate = errors.New("uri: malformed template")

	// ErrInvalidCharacter reports a character that is not allowed in its
	// component, either in a raw value or in a substituted parameter.
	ErrInvalidCharacter = errors.New("uri: invalid character")

	// ErrInvalidParameterName reports a template parameter name that does
	// not match [A-Za-z_][A-Za-z0-9_]*.
	ErrInvalidParameterName = errors.New("uri: invalid parameter name")

	// ErrWildcardMisuse reports a ** glob mixed with other characters in a
	// path segment. ** must be the entire segment.
	ErrWildcardMisuse = errors.New("uri: ** must span a whole path segment")

	// ErrConflictingForm reports a component that the builder's
	// request-target form does not allow, or PathPattern combined with
	// FormPathQuery.
	ErrConflictingForm = errors.New("uri: component conflicts with request-target form")

	// ErrMissingValue reports a template parameter with no bound value at
	// build time.
	ErrMissingValue = errors.New("uri: missing parameter value")
)
