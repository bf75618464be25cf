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
	"fmt"
	"strings"

	"github.com/veloxhq/velox/stream"
)

// Parameter is one event of the URL-encoded decoder. A parameter whose
// value spans input chunks yields intermediate events with Partial set,
// each carrying the value decoded so far; the terminating event carries
// the complete value with Partial false. The terminating event of the
// payload's final parameter carries Last.
type Parameter struct {
	Name    string
	Value   string
	Partial bool
	Last    bool
}

// URLDecoder is a streaming push-parser for
// application/x-www-form-urlencoded payloads. Feed it as the subscriber
// of a body channel; it emits one callback per parameter event.
type URLDecoder struct {
	emit  func(Parameter)
	fail  func(error)
	name  strings.Builder
	value strings.Builder
	// pct buffers a percent escape split across chunk boundaries.
	pct     [3]byte
	pctLen  int
	inValue bool
	open    bool // a parameter is under construction
	// held is a parameter terminated by '&' whose terminating event
	// waits until the next byte or end of payload decides Last.
	held *Parameter
	done bool
}

var _ stream.Subscriber = (*URLDecoder)(nil)

// NewURLDecoder returns a decoder delivering events to emit. fail, when
// non-nil, receives a malformed-payload or upstream error.
func NewURLDecoder(emit func(Parameter), fail func(error)) *URLDecoder {
	return &URLDecoder{emit: emit, fail: fail}
}

// OnChunk consumes one body chunk and releases it. A parameter left open
// by the previous chunk first surfaces as a partial event, so consumers
// see progress without waiting for the terminator.
func (d *URLDecoder) OnChunk(c *stream.Chunk) {
	defer c.Release()
	if d.done {
		return
	}
	if d.open {
		d.emit(Parameter{Name: d.name.String(), Value: d.value.String(), Partial: true})
	}
	for _, b := range c.Bytes() {
		d.consume(b)
	}
}

// OnComplete terminates the payload: the parameter under construction
// (or the held one) is emitted with Last set.
func (d *URLDecoder) OnComplete() {
	if d.done {
		return
	}
	d.done = true
	if d.pctLen > 0 {
		d.failWith(fmt.Errorf("form: truncated percent escape"))
		return
	}
	if d.open {
		d.finishParameter(true)
		return
	}
	d.flushHeld(true)
}

// OnError aborts decoding.
func (d *URLDecoder) OnError(err error) {
	if d.done {
		return
	}
	d.done = true
	d.failWith(err)
}

func (d *URLDecoder) failWith(err error) {
	if d.fail != nil {
		d.fail(err)
	}
}

func (d *URLDecoder) consume(b byte) {
	if d.done {
		return
	}
	if d.pctLen > 0 {
		d.pct[d.pctLen] = b
		d.pctLen++
		if d.pctLen == 3 {
			v, err := unhex(d.pct[1], d.pct[2])
			if err != nil {
				d.done = true
				d.failWith(err)
				return
			}
			d.pctLen = 0
			d.write(v)
		}
		return
	}
	switch b {
	case '%':
		d.flushHeld(false)
		d.open = true
		d.pct[0] = '%'
		d.pctLen = 1
	case '+':
		d.write(' ')
	case '=':
		if d.inValue {
			d.write('=')
			return
		}
		d.flushHeld(false)
		d.open = true
		d.inValue = true
	case '&':
		if d.open {
			d.finishParameter(false)
		}
	default:
		d.write(b)
	}
}

func (d *URLDecoder) write(b byte) {
	d.flushHeld(false)
	d.open = true
	if d.inValue {
		d.value.WriteByte(b)
	} else {
		d.name.WriteByte(b)
	}
}

// finishParameter closes the parameter under construction with its
// complete value. Unless last is already known, the terminating event is
// held back until the next byte or end of payload decides the flag.
func (d *URLDecoder) finishParameter(last bool) {
	p := Parameter{Name: d.name.String(), Value: d.value.String(), Last: last}
	d.name.Reset()
	d.value.Reset()
	d.inValue = false
	d.open = false
	if last {
		d.emit(p)
		return
	}
	d.held = &p
}

func (d *URLDecoder) flushHeld(last bool) {
	if d.held == nil {
		return
	}
	p := *d.held
	d.held = nil
	p.Last = last
	d.emit(p)
}

func unhex(a, b byte) (byte, error) {
	ha, ok1 := hexVal(a)
	hb, ok2 := hexVal(b)
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("form: invalid percent escape %%%c%c", a, b)
	}
	return ha<<4 | hb, nil
}

func hexVal(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
