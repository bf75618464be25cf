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
	"fmt"
	"mime"
	"sync"

	"github.com/veloxhq/velox/form"
	"github.com/veloxhq/velox/stream"
)

// BodyView identifies the selected request-body representation.
type BodyView int

const (
	// ViewNone: no view selected yet.
	ViewNone BodyView = iota
	// ViewRaw exposes the chunk channel directly.
	ViewRaw
	// ViewURLEncoded decodes application/x-www-form-urlencoded
	// parameters.
	ViewURLEncoded
	// ViewMultipart decodes multipart/form-data parts.
	ViewMultipart
)

func (v BodyView) String() string {
	switch v {
	case ViewRaw:
		return "raw"
	case ViewURLEncoded:
		return "urlencoded"
	case ViewMultipart:
		return "multipart"
	default:
		return "none"
	}
}

// RequestBody is the payload of a POST, PUT or PATCH request. It exposes
// exactly one of three views over the underlying unicast channel; the
// selection is single-assignment and the first view to subscribe wins.
type RequestBody struct {
	channel     *stream.Channel
	contentType string

	mu   sync.Mutex
	view BodyView
}

// newRequestBody wraps a body channel with its declared content type.
func newRequestBody(ch *stream.Channel, contentType string) *RequestBody {
	return &RequestBody{channel: ch, contentType: contentType}
}

func (b *RequestBody) selectView(v BodyView) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.view != ViewNone {
		return fmt.Errorf("%w: %s view already active", ErrBodyAlreadySelected, b.view)
	}
	b.view = v
	return nil
}

// View returns the selected view.
func (b *RequestBody) View() BodyView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// Raw selects the raw view and returns the chunk channel for
// subscription.
func (b *RequestBody) Raw() (*stream.Channel, error) {
	if err := b.selectView(ViewRaw); err != nil {
		return nil, err
	}
	return b.channel, nil
}

// URLEncoded selects the url-encoded view: the decoder subscribes to the
// body and emits one event per parameter piece. The declared content
// type must be application/x-www-form-urlencoded.
func (b *RequestBody) URLEncoded(emit func(form.Parameter), fail func(error)) error {
	mediaType, _, err := mime.ParseMediaType(b.contentType)
	if err != nil || mediaType != "application/x-www-form-urlencoded" {
		return NewBadRequest("content type %q is not url-encoded", b.contentType)
	}
	if err := b.selectView(ViewURLEncoded); err != nil {
		return err
	}
	return b.channel.Subscribe(form.NewURLDecoder(emit, fail), stream.Unbounded)
}

// Multipart selects the multipart view: parts are produced lazily as the
// decoder advances. The declared content type must be
// multipart/form-data with a boundary parameter.
func (b *RequestBody) Multipart(onPart func(*form.Part), onEnd func(error)) (*form.MultipartDecoder, error) {
	mediaType, params, err := mime.ParseMediaType(b.contentType)
	if err != nil || mediaType != "multipart/form-data" {
		return nil, NewBadRequest("content type %q is not multipart", b.contentType)
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return nil, NewBadRequest("multipart content type without boundary")
	}
	if err := b.selectView(ViewMultipart); err != nil {
		return nil, err
	}
	dec := form.NewMultipartDecoder(boundary, onPart, onEnd)
	if err := dec.SubscribeTo(b.channel); err != nil {
		return nil, err
	}
	return dec, nil
}

// Dispose cancels the body channel, releasing the chunks it still
// buffers. Parts that a multipart view has already produced are not
// released by Dispose.
func (b *RequestBody) Dispose(reason error) {
	b.channel.Cancel(reason)
}
