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
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/veloxhq/velox/stream"
)

// SSEContentType is the media type of a server-sent event stream.
const SSEContentType = "text/event-stream"

// SSEEvent is one record of a text/event-stream body: LF-terminated
// id/event/data fields separated from the next record by a blank line.
// Comment carries a ':'-prefixed heartbeat line; Retry the client
// reconnection delay.
type SSEEvent struct {
	ID      string
	Type    string
	Data    string
	Comment string
	Retry   time.Duration
}

// encode renders the record, splitting multi-line data into one data:
// field per line.
func (e SSEEvent) encode() []byte {
	var sb strings.Builder
	if e.Comment != "" {
		for _, line := range strings.Split(e.Comment, "\n") {
			sb.WriteString(":")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	if e.ID != "" {
		sb.WriteString("id:")
		sb.WriteString(e.ID)
		sb.WriteString("\n")
	}
	if e.Type != "" {
		sb.WriteString("event:")
		sb.WriteString(e.Type)
		sb.WriteString("\n")
	}
	if e.Retry > 0 {
		sb.WriteString("retry:")
		sb.WriteString(strconv.FormatInt(e.Retry.Milliseconds(), 10))
		sb.WriteString("\n")
	}
	if e.Data != "" {
		for _, line := range strings.Split(e.Data, "\n") {
			sb.WriteString("data:")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	return []byte(sb.String())
}

// SSEEncoder frames events into a response body publisher. Set it up
// with Response.Publisher and the text/event-stream content type; each
// Send becomes one chunk, so events flush promptly.
type SSEEncoder struct {
	ch *stream.Channel
}

// NewSSEEncoder wraps a body channel.
func NewSSEEncoder(ch *stream.Channel) *SSEEncoder {
	return &SSEEncoder{ch: ch}
}

// Attach selects the encoder's channel as the response body and sets the
// content type.
func (e *SSEEncoder) Attach(res *Response) error {
	if err := res.Headers().Set("content-type", SSEContentType); err != nil {
		return err
	}
	return res.Publisher(e.ch)
}

// Send writes one event record.
func (e *SSEEncoder) Send(ev SSEEvent) error {
	return e.ch.Write(stream.NewChunk(ev.encode()))
}

// Close ends the event stream.
func (e *SSEEncoder) Close() {
	e.ch.Close()
}

// SSEDecoder is a streaming text/event-stream parser: feed it as the
// subscriber of a response body and it emits one callback per record.
// CR characters preceding LF are tolerated and stripped.
type SSEDecoder struct {
	emit func(SSEEvent)
	fail func(error)

	buf     []byte
	current SSEEvent
	hasData bool
	sawAny  bool
	done    bool
}

var _ stream.Subscriber = (*SSEDecoder)(nil)

// NewSSEDecoder returns a decoder delivering records to emit.
func NewSSEDecoder(emit func(SSEEvent), fail func(error)) *SSEDecoder {
	return &SSEDecoder{emit: emit, fail: fail}
}

// OnChunk consumes one body chunk and releases it.
func (d *SSEDecoder) OnChunk(c *stream.Chunk) {
	defer c.Release()
	if d.done {
		return
	}
	d.buf = append(d.buf, c.Bytes()...)
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		d.consumeLine(string(line))
	}
}

// OnComplete flushes a trailing record missing its final blank line.
func (d *SSEDecoder) OnComplete() {
	if d.done {
		return
	}
	d.done = true
	if d.sawAny {
		d.dispatch()
	}
}

// OnError aborts decoding.
func (d *SSEDecoder) OnError(err error) {
	if d.done {
		return
	}
	d.done = true
	if d.fail != nil {
		d.fail(err)
	}
}

func (d *SSEDecoder) consumeLine(line string) {
	if line == "" {
		if d.sawAny {
			d.dispatch()
		}
		return
	}
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")
	if field == "" {
		// A line starting with ':' is a comment.
		d.current.Comment += value
		d.sawAny = true
		return
	}
	switch field {
	case "id":
		d.current.ID = value
	case "event":
		d.current.Type = value
	case "retry":
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			d.current.Retry = time.Duration(ms) * time.Millisecond
		}
	case "data":
		if d.hasData {
			d.current.Data += "\n"
		}
		d.current.Data += value
		d.hasData = true
	default:
		// Unknown fields are ignored per the event-stream grammar.
		return
	}
	d.sawAny = true
}

func (d *SSEDecoder) dispatch() {
	d.emit(d.current)
	d.current = SSEEvent{}
	d.hasData = false
	d.sawAny = false
}
