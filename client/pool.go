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

package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPoolClosed reports an acquire on a shut-down pool.
var ErrPoolClosed = errors.New("client: pool closed")

// conn is a versioned transport the pool hands out. capacity is the
// per-connection concurrency cap: 1 or the pipelining depth for
// HTTP/1.1, the negotiated max concurrent streams for HTTP/2.
type conn interface {
	roundTrip(ctx context.Context, timeout time.Duration, req *Request) (*Response, error)
	capacity() int
	protocol() Protocol
	isClosed() bool
	close(err error)
}

// pooledConn pairs a connection with its in-flight exchange count.
type pooledConn struct {
	conn
	inflight int
	pending  bool // still dialing
}

// acquireResult is what a queued waiter eventually receives.
type acquireResult struct {
	pc  *pooledConn
	err error
}

// waiter queues an acquire that found the pool saturated.
type waiter struct {
	ready chan acquireResult
}

// Pool is a bounded multiset of connections to one peer with a FIFO
// queue of pending acquires. The connection count never exceeds maxSize:
// a dialing slot is reserved before the dial starts.
type Pool struct {
	mu      sync.Mutex
	dial    func(ctx context.Context) (conn, error)
	maxSize int
	conns   []*pooledConn
	waiters []*waiter
	closed  bool
}

// NewPool returns a pool dialing new connections with dial, capped at
// maxSize connections.
func NewPool(maxSize int, dial func(ctx context.Context) (conn, error)) *Pool {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Pool{maxSize: maxSize, dial: dial}
}

// Size returns the current connection count, dialing slots included.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Waiting returns the queued acquire count.
func (p *Pool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Acquire returns a connection with spare capacity: an idle one when
// available, a freshly dialed one while the pool is below its cap, and
// otherwise it joins the FIFO queue until a release frees capacity.
// Cancelling ctx while queued removes the waiter silently.
func (p *Pool) Acquire(ctx context.Context) (*pooledConn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.pruneLocked()

	if pc := p.idleLocked(); pc != nil {
		pc.inflight++
		p.mu.Unlock()
		return pc, nil
	}

	if len(p.conns) < p.maxSize {
		// Reserve the slot before dialing so the cap holds under
		// concurrent acquires.
		pc := &pooledConn{pending: true, inflight: 1}
		p.conns = append(p.conns, pc)
		p.mu.Unlock()
		return p.dialInto(ctx, pc)
	}

	w := &waiter{ready: make(chan acquireResult, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case res := <-w.ready:
		return res.pc, res.err
	case <-ctx.Done():
		p.removeWaiter(w)
		// A release may have raced the cancellation; hand its capacity
		// back.
		select {
		case res := <-w.ready:
			if res.pc != nil {
				p.Release(res.pc)
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Release returns capacity to the pool and wakes the first waiter.
func (p *Pool) Release(pc *pooledConn) {
	p.mu.Lock()
	if pc.inflight > 0 {
		pc.inflight--
	}
	if pc.conn != nil && pc.isClosed() {
		p.removeLocked(pc)
	}
	p.wakeLocked()
	p.mu.Unlock()
}

// Discard drops a broken connection from the pool, giving queued waiters
// a fresh dialing slot.
func (p *Pool) Discard(pc *pooledConn, err error) {
	if pc.conn != nil {
		pc.close(err)
	}
	p.mu.Lock()
	p.removeLocked(pc)
	p.wakeLocked()
	p.mu.Unlock()
}

// Close shuts the pool down, closing every connection and failing every
// waiter.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	conns := p.conns
	waiters := p.waiters
	p.conns = nil
	p.waiters = nil
	p.mu.Unlock()

	for _, pc := range conns {
		if pc.conn != nil {
			pc.close(ErrPoolClosed)
		}
	}
	for _, w := range waiters {
		w.ready <- acquireResult{err: ErrPoolClosed}
	}
}

// dialInto completes a reserved slot. On failure the slot is freed and
// the next waiter gets a chance.
func (p *Pool) dialInto(ctx context.Context, pc *pooledConn) (*pooledConn, error) {
	c, err := p.dial(ctx)
	p.mu.Lock()
	if err != nil {
		p.removeLocked(pc)
		p.wakeLocked()
		p.mu.Unlock()
		return nil, err
	}
	pc.conn = c
	pc.pending = false
	p.wakeLocked()
	p.mu.Unlock()
	return pc, nil
}

// idleLocked returns a live connection below its concurrency cap.
func (p *Pool) idleLocked() *pooledConn {
	for _, pc := range p.conns {
		if pc.pending || pc.conn == nil {
			continue
		}
		if !pc.isClosed() && pc.inflight < pc.capacity() {
			return pc
		}
	}
	return nil
}

// pruneLocked drops closed connections.
func (p *Pool) pruneLocked() {
	kept := p.conns[:0]
	for _, pc := range p.conns {
		if pc.conn != nil && pc.isClosed() {
			continue
		}
		kept = append(kept, pc)
	}
	p.conns = kept
}

func (p *Pool) removeLocked(pc *pooledConn) {
	for i, cur := range p.conns {
		if cur == pc {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			return
		}
	}
}

func (p *Pool) removeWaiter(w *waiter) {
	p.mu.Lock()
	for i, cur := range p.waiters {
		if cur == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// wakeLocked serves queued waiters: existing spare capacity first, then
// a fresh dialing slot when the pool dropped below its cap.
func (p *Pool) wakeLocked() {
	for len(p.waiters) > 0 && !p.closed {
		if pc := p.idleLocked(); pc != nil {
			w := p.waiters[0]
			p.waiters = p.waiters[1:]
			pc.inflight++
			w.ready <- acquireResult{pc: pc}
			continue
		}
		if len(p.conns) >= p.maxSize {
			return
		}
		// A slot is free: dial on the waiter's behalf.
		slot := &pooledConn{pending: true, inflight: 1}
		p.conns = append(p.conns, slot)
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		go func() {
			pc, err := p.dialInto(context.Background(), slot)
			w.ready <- acquireResult{pc: pc, err: err}
		}()
	}
}
