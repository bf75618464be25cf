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

// Package client provides the HTTP client side of the platform: an
// [Endpoint] addresses one (host, port, scheme) peer through a bounded
// connection [Pool] and drives request/response exchanges over HTTP/1.1
// (pipelined) or HTTP/2 (multiplexed) connections.
//
// Requests pass through the endpoint's interceptor chain before touching
// a connection; an interceptor can rewrite the request, wrap the
// response body, or abort the exchange with a locally synthesized
// response, in which case no transport I/O happens at all.
//
// A per-request timeout is cancellation with a reason: on HTTP/2 it
// resets only its own stream, while on HTTP/1.1 the linear pipeline
// forces the whole connection down and every queued request fails with
// the same timeout.
package client
