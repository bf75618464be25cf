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
	"strconv"
	"strings"
	"sync/atomic"
)

// headerEntry is one header field; the name is stored lower-cased.
type headerEntry struct {
	name  string
	value string
}

// Headers is an insertion-ordered, case-insensitive header multimap.
// Writes are monotonic: once the headers are flushed to the transport,
// MarkWritten flips a flag and every later mutation fails with
// ErrHeadersAlreadyWritten.
//
// Headers are single-writer (the response owner); reads may come from
// any goroutine once written.
type Headers struct {
	entries []headerEntry
	written atomic.Bool
}

// NewHeaders returns an empty header map.
func NewHeaders() *Headers {
	return &Headers{}
}

// Written reports whether the headers were flushed.
func (h *Headers) Written() bool {
	return h.written.Load()
}

// MarkWritten freezes the headers. Further mutations fail.
func (h *Headers) MarkWritten() {
	h.written.Store(true)
}

// Add appends a value, keeping previous values for the same name.
func (h *Headers) Add(name, value string) error {
	if h.written.Load() {
		return ErrHeadersAlreadyWritten
	}
	h.entries = append(h.entries, headerEntry{name: strings.ToLower(name), value: value})
	return nil
}

// Set replaces every value of name with the single given value.
func (h *Headers) Set(name, value string) error {
	if h.written.Load() {
		return ErrHeadersAlreadyWritten
	}
	h.removeAll(strings.ToLower(name))
	h.entries = append(h.entries, headerEntry{name: strings.ToLower(name), value: value})
	return nil
}

// Del removes every value of name.
func (h *Headers) Del(name string) error {
	if h.written.Load() {
		return ErrHeadersAlreadyWritten
	}
	h.removeAll(strings.ToLower(name))
	return nil
}

func (h *Headers) removeAll(lower string) {
	kept := h.entries[:0]
	for _, e := range h.entries {
		if e.name != lower {
			kept = append(kept, e)
		}
	}
	h.entries = kept
}

// Get returns the first value of name.
func (h *Headers) Get(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, e := range h.entries {
		if e.name == lower {
			return e.value, true
		}
	}
	return "", false
}

// Values returns every value of name in insertion order.
func (h *Headers) Values(name string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, e := range h.entries {
		if e.name == lower {
			out = append(out, e.value)
		}
	}
	return out
}

// Contains reports whether name has at least one value.
func (h *Headers) Contains(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Names returns the distinct header names in first-insertion order.
func (h *Headers) Names() []string {
	var out []string
	seen := make(map[string]struct{}, len(h.entries))
	for _, e := range h.entries {
		if _, dup := seen[e.name]; !dup {
			seen[e.name] = struct{}{}
			out = append(out, e.name)
		}
	}
	return out
}

// All iterates the entries in insertion order.
func (h *Headers) All(yield func(name, value string) bool) {
	for _, e := range h.entries {
		if !yield(e.name, e.value) {
			return
		}
	}
}

// Len returns the number of entries.
func (h *Headers) Len() int {
	return len(h.entries)
}

// Clone returns an unfrozen copy.
func (h *Headers) Clone() *Headers {
	return &Headers{entries: append([]headerEntry(nil), h.entries...)}
}

// ContentLength returns the content-length value, or -1 when absent or
// malformed.
func (h *Headers) ContentLength() int64 {
	v, ok := h.Get("content-length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// SetContentLength sets the content-length header.
func (h *Headers) SetContentLength(n int64) error {
	return h.Set("content-length", strconv.FormatInt(n, 10))
}

// ContentType returns the content-type value, or "".
func (h *Headers) ContentType() string {
	v, _ := h.Get("content-type")
	return v
}
