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
	"net/http"
	"strings"
)

// parseCookies extracts name→ordered-values pairs from the cookie
// headers. Malformed pairs are skipped.
func parseCookies(h *Headers) map[string][]string {
	out := make(map[string][]string)
	for _, line := range h.Values("cookie") {
		for _, pair := range strings.Split(line, ";") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			name, value, found := strings.Cut(pair, "=")
			if !found || name == "" {
				continue
			}
			value = strings.Trim(value, `"`)
			out[name] = append(out[name], value)
		}
	}
	return out
}

// materializeCookies appends one set-cookie header per response cookie.
// Called by the engine immediately before the headers flush.
func materializeCookies(h *Headers, cookies []*http.Cookie) error {
	for _, c := range cookies {
		if v := c.String(); v != "" {
			if err := h.Add("set-cookie", v); err != nil {
				return err
			}
		}
	}
	return nil
}
