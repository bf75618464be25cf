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

package stream

import (
	"fmt"
	"sync/atomic"
)

// Chunk is a reference-counted byte buffer flowing through a body
// publisher. A chunk starts with one reference; every holder that keeps
// it past the callback that delivered it must Retain, and every
// reference must be balanced by exactly one Release. The engine releases
// on transport write or on discard, so at the end of an exchange the
// release count equals the acquire count.
type Chunk struct {
	data []byte
	refs atomic.Int32
}

// NewChunk wraps data in a chunk holding one reference. The chunk takes
// ownership of the slice; callers must not mutate it afterwards.
func NewChunk(data []byte) *Chunk {
	c := &Chunk{data: data}
	c.refs.Store(1)
	return c
}

// Bytes returns the chunk's payload. The slice is only valid while the
// caller holds a reference.
func (c *Chunk) Bytes() []byte {
	return c.data
}

// ReadableBytes returns the payload length.
func (c *Chunk) ReadableBytes() int {
	return len(c.data)
}

// Refs returns the current reference count.
func (c *Chunk) Refs() int32 {
	return c.refs.Load()
}

// Retain acquires an additional reference and returns the chunk.
func (c *Chunk) Retain() *Chunk {
	if c.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("stream: retain of released chunk (%d bytes)", len(c.data)))
	}
	return c
}

// Release drops one reference. Releasing the last reference invalidates
// the payload; releasing past zero panics, because it means two holders
// both thought they owned the final reference.
func (c *Chunk) Release() {
	n := c.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("stream: release of released chunk (%d bytes)", len(c.data)))
	}
	if n == 0 {
		c.data = nil
	}
}
