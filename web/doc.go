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

// Package web holds the protocol-version-agnostic exchange engine and
// the request/response model it drives.
//
// An [Exchange] pairs one [Request] with one [Response] on a connection's
// event loop and walks the lifecycle Created → Running → DrainingBody →
// Complete, recovering handler and body errors into error responses
// while response headers are still unwritten. Version-specific framing
// (HTTP/1.1 chunking, HTTP/2 DATA frames) is supplied by a [Framer]
// strategy; the engine itself never touches the wire.
//
// Bodies are reactive: a request body is a unicast chunk channel exposed
// through exactly one of three views (raw, url-encoded, multipart), and
// a response body is empty, a known-length value, a chunk publisher, or
// a server-sent event stream.
package web
