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

// Package form decodes request bodies in streaming fashion:
// application/x-www-form-urlencoded payloads into parameter events and
// multipart/form-data payloads (RFC 7578) into lazily produced parts.
//
// Both decoders are push parsers fed from a chunk channel; they never
// buffer a whole payload. A parameter whose value spans input chunks
// surfaces as a series of partial events; a multipart part exposes its
// body as its own unicast channel that downstream consumers must drain
// promptly, since an undrained part backpressures the transport.
package form
