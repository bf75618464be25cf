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

package form

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/textproto"

	"github.com/veloxhq/velox/stream"
)

// ErrMalformedMultipart reports a payload violating the RFC 7578
// framing.
var ErrMalformedMultipart = errors.New("form: malformed multipart payload")

// Part is one multipart sub-entity: parsed headers and a body channel
// that stays active until the decoder reaches the next boundary. The
// body must be drained or released; an undrained part holds buffered
// chunks and backpressures the enclosing request body.
type Part struct {
	Headers textproto.MIMEHeader
	Body    *stream.Channel

	name     string
	filename string
}

// FormName returns the name parameter of the content-disposition header.
func (p *Part) FormName() string { return p.name }

// FileName returns the filename parameter of the content-disposition
// header, or "".
func (p *Part) FileName() string { return p.filename }

// Release cancels the part's body, dropping buffered chunks.
func (p *Part) Release() {
	p.Body.Cancel(nil)
}

type multipartState int

const (
	statePreamble multipartState = iota
	statePartHeaders
	statePartBody
	stateDone
)

// MultipartDecoder is a streaming RFC 7578 parser. Each boundary opens a
// new Part delivered through the onPart callback; the part's body chunks
// flow into its own channel as the decoder advances. The decoder applies
// backpressure by withholding upstream demand while the active part's
// channel is above its watermark.
type MultipartDecoder struct {
	boundary []byte // "--" + boundary token
	onPart   func(*Part)
	onEnd    func(error)

	source  *stream.Channel
	state   multipartState
	buf     []byte
	part    *Part
	parts   []*Part
	paused  bool
	pending int64 // demand withheld while paused
	done    bool
}

var _ stream.Subscriber = (*MultipartDecoder)(nil)

// NewMultipartDecoder returns a decoder for the given boundary token.
// onEnd receives nil on a well-formed payload, or the framing error.
func NewMultipartDecoder(boundary string, onPart func(*Part), onEnd func(error)) *MultipartDecoder {
	return &MultipartDecoder{
		boundary: []byte("--" + boundary),
		onPart:   onPart,
		onEnd:    onEnd,
	}
}

// SubscribeTo attaches the decoder to the body channel with demand 1,
// requesting more as each chunk is parsed. This keeps the transport
// paused while a part's consumer lags.
func (d *MultipartDecoder) SubscribeTo(ch *stream.Channel) error {
	d.source = ch
	if err := ch.Subscribe(d, 1); err != nil {
		return err
	}
	return nil
}

// Parts returns the parts produced so far.
func (d *MultipartDecoder) Parts() []*Part {
	return d.parts
}

// OnChunk consumes one body chunk, releases it, and requests the next
// unless the active part is above its watermark.
func (d *MultipartDecoder) OnChunk(c *stream.Chunk) {
	d.buf = append(d.buf, c.Bytes()...)
	c.Release()
	if !d.done {
		d.advance()
	}
	d.requestNext()
}

// OnComplete finishes the payload. Reaching it before the closing
// boundary is a framing error.
func (d *MultipartDecoder) OnComplete() {
	if d.done {
		return
	}
	d.advance()
	if d.done {
		return
	}
	d.failWith(fmt.Errorf("%w: missing closing boundary", ErrMalformedMultipart))
}

// OnError aborts decoding and fails the active part.
func (d *MultipartDecoder) OnError(err error) {
	if d.done {
		return
	}
	d.done = true
	if d.part != nil {
		d.part.Body.Fail(err)
		d.part = nil
	}
	if d.onEnd != nil {
		d.onEnd(err)
	}
}

func (d *MultipartDecoder) failWith(err error) {
	d.done = true
	d.state = stateDone
	if d.part != nil {
		d.part.Body.Fail(err)
		d.part = nil
	}
	if d.onEnd != nil {
		d.onEnd(err)
	}
}

func (d *MultipartDecoder) finish() {
	d.done = true
	d.state = stateDone
	d.buf = nil
	if d.onEnd != nil {
		d.onEnd(nil)
	}
}

func (d *MultipartDecoder) requestNext() {
	if d.source == nil || d.done {
		return
	}
	if d.paused {
		d.pending++
		return
	}
	d.source.Request(1)
}

// advance runs the parser over the buffered bytes as far as they allow.
func (d *MultipartDecoder) advance() {
	for {
		switch d.state {
		case statePreamble:
			if !d.advancePreamble() {
				return
			}
		case statePartHeaders:
			if !d.advanceHeaders() {
				return
			}
		case statePartBody:
			if !d.advanceBody() {
				return
			}
		case stateDone:
			return
		}
	}
}

// advancePreamble skips everything up to and including the first
// boundary line. RFC 7578 allows an arbitrary preamble before it; text
// that merely starts like the boundary keeps the scan going.
func (d *MultipartDecoder) advancePreamble() bool {
	search := 0
	for {
		rel := bytes.Index(d.buf[search:], d.boundary)
		if rel < 0 {
			// Keep a tail that could hold a split boundary.
			d.trimTo(len(d.boundary))
			return false
		}
		idx := search + rel
		rest := d.buf[idx+len(d.boundary):]
		switch {
		case bytes.HasPrefix(rest, []byte("\r\n")):
			d.buf = append(d.buf[:0:0], rest[2:]...)
			d.state = statePartHeaders
			return true
		case len(rest) < 2:
			// Possibly a split delimiter line; wait for more input.
			d.buf = append(d.buf[:0:0], d.buf[idx:]...)
			return false
		default:
			search = idx + 1
		}
	}
}

// advanceHeaders waits for the blank line terminating the part headers,
// parses them and opens the part.
func (d *MultipartDecoder) advanceHeaders() bool {
	end := bytes.Index(d.buf, []byte("\r\n\r\n"))
	var raw []byte
	switch {
	case end >= 0:
		raw = d.buf[:end+4]
		d.buf = d.buf[end+4:]
	case bytes.HasPrefix(d.buf, []byte("\r\n")):
		// Empty header block.
		raw = []byte("\r\n")
		d.buf = d.buf[2:]
	default:
		return false
	}

	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	header, err := tp.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		d.failWith(fmt.Errorf("%w: %v", ErrMalformedMultipart, err))
		return false
	}

	part := &Part{Headers: header}
	if cd := header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			part.name = params["name"]
			part.filename = params["filename"]
		}
	}
	part.Body = stream.NewChannel(stream.WithFlowControl(d.pauseUpstream, d.resumeUpstream))
	d.part = part
	d.parts = append(d.parts, part)
	d.state = statePartBody
	if d.onPart != nil {
		d.onPart(part)
	}
	return true
}

// advanceBody forwards body bytes up to the next boundary delimiter.
// Bytes that merely resemble a delimiter (the boundary token followed by
// neither CRLF nor "--") stay part of the body.
func (d *MultipartDecoder) advanceBody() bool {
	delim := append([]byte("\r\n"), d.boundary...)
	search := 0
	for {
		rel := bytes.Index(d.buf[search:], delim)
		if rel < 0 {
			// Emit everything that cannot be part of a split delimiter.
			if keep := len(delim) + 1; len(d.buf) > keep {
				d.emitBody(d.buf[:len(d.buf)-keep])
				d.buf = append(d.buf[:0:0], d.buf[len(d.buf)-keep:]...)
			}
			return false
		}
		idx := search + rel
		rest := d.buf[idx+len(delim):]

		switch {
		case bytes.HasPrefix(rest, []byte("--")):
			d.emitBody(d.buf[:idx])
			d.closePart()
			d.finish()
			return false
		case bytes.HasPrefix(rest, []byte("\r\n")):
			d.emitBody(d.buf[:idx])
			d.closePart()
			d.buf = append(d.buf[:0:0], rest[2:]...)
			d.state = statePartHeaders
			return true
		case len(rest) < 2:
			// Not enough bytes to classify; emit the body prefix and
			// wait for more input.
			d.emitBody(d.buf[:idx])
			d.buf = append(d.buf[:0:0], d.buf[idx:]...)
			return false
		default:
			// A lookalike: keep scanning past it.
			search = idx + 1
		}
	}
}

func (d *MultipartDecoder) emitBody(data []byte) {
	if len(data) == 0 || d.part == nil {
		return
	}
	_ = d.part.Body.Write(stream.NewChunk(append([]byte(nil), data...)))
}

func (d *MultipartDecoder) closePart() {
	if d.part == nil {
		return
	}
	d.part.Body.Close()
	d.part = nil
}

// trimTo drops consumed preamble bytes, keeping the last n that could
// open a split boundary.
func (d *MultipartDecoder) trimTo(n int) {
	if len(d.buf) > n {
		d.buf = append(d.buf[:0:0], d.buf[len(d.buf)-n:]...)
	}
}

func (d *MultipartDecoder) pauseUpstream() {
	d.paused = true
}

func (d *MultipartDecoder) resumeUpstream() {
	if !d.paused {
		return
	}
	d.paused = false
	for d.pending > 0 && d.source != nil {
		d.pending--
		d.source.Request(1)
	}
}
