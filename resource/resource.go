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

// Package resource declares the contract the platform expects from
// resource providers: URI-addressed entities (file:, classpath:, jar:,
// http:, …) that can be probed, read, written and resolved. The scheme
// implementations live with their providers; the web server and client
// consume them only through these interfaces.
package resource

import (
	"errors"
	"io"
	"time"
)

// ErrNotSupported reports an operation the scheme cannot provide (for
// example writing an http: resource).
var ErrNotSupported = errors.New("resource: operation not supported")

// Resource is one URI-addressed entity.
type Resource interface {
	// URI returns the resource's identifier.
	URI() string

	// Exists probes for the resource.
	Exists() (bool, error)

	// LastModified returns the modification time, when the scheme tracks
	// one.
	LastModified() (time.Time, error)

	// Size returns the content length in bytes, when knowable without
	// reading.
	Size() (int64, error)

	// OpenReadable opens the content for reading.
	OpenReadable() (io.ReadCloser, error)

	// OpenWritable opens the content for writing, creating the resource
	// when createParents also creates missing ancestors.
	OpenWritable(createParents bool) (io.WriteCloser, error)

	// Delete removes the resource.
	Delete() error

	// Resolve returns the resource at the given path relative to this
	// one.
	Resolve(relative string) (Resource, error)
}

// MediaTypeResolver maps a resource to its media type, typically from
// the URI's file extension. The server uses it to type static content
// and error payloads.
type MediaTypeResolver interface {
	MediaType(uri string) (string, bool)
}

// Provider opens resources for the URI schemes it supports.
type Provider interface {
	// Schemes lists the URI schemes the provider serves.
	Schemes() []string

	// Open resolves a URI into a resource. The resource may not exist
	// yet; Exists distinguishes.
	Open(uri string) (Resource, error)
}
