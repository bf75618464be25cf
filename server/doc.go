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

// Package server hosts web handlers over HTTP/1.1 and HTTP/2. It binds
// the transport (net/http with h2c cleartext upgrade or TLS ALPN) to the
// exchange engine: each inbound request becomes a web.Exchange pinned to
// its connection's event loop, the request body flows through a
// backpressured chunk channel, and the response is framed back by the
// protocol the connection negotiated.
package server
