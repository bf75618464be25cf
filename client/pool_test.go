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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a pool-managed connection stub.
type fakeConn struct {
	cap      int
	closedFl atomic.Bool
}

func (f *fakeConn) roundTrip(context.Context, time.Duration, *Request) (*Response, error) {
	return nil, nil
}

func (f *fakeConn) capacity() int { return f.cap }

func (f *fakeConn) protocol() Protocol { return HTTP11 }

func (f *fakeConn) isClosed() bool { return f.closedFl.Load() }

func (f *fakeConn) close(error) { f.closedFl.Store(true) }

func newFakePool(maxSize, connCap int, dialed *atomic.Int32) *Pool {
	return NewPool(maxSize, func(ctx context.Context) (conn, error) {
		if dialed != nil {
			dialed.Add(1)
		}
		return &fakeConn{cap: connCap}, nil
	})
}

func TestPoolReusesIdleConnection(t *testing.T) {
	var dialed atomic.Int32
	p := newFakePool(2, 2, &dialed)

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)

	// Capacity 2: both acquires share the first connection.
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), dialed.Load())
}

func TestPoolDialsUpToMaxSize(t *testing.T) {
	var dialed atomic.Int32
	p := newFakePool(2, 1, &dialed)

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int32(2), dialed.Load())
	assert.Equal(t, 2, p.Size())
}

// The pool never exceeds max_size, even under concurrent acquires.
func TestPoolCapInvariant(t *testing.T) {
	const maxSize = 2
	var dialed atomic.Int32
	p := newFakePool(maxSize, 1, &dialed)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pc, err := p.Acquire(context.Background())
			if err != nil {
				return
			}
			assert.LessOrEqual(t, p.Size(), maxSize)
			time.Sleep(time.Millisecond)
			p.Release(pc)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, int(dialed.Load()), maxSize)
}

func TestPoolWaiterWokenFIFO(t *testing.T) {
	p := newFakePool(1, 1, nil)

	first, err := p.Acquire(context.Background())
	require.NoError(t, err)

	type result struct {
		order int
		pc    *pooledConn
	}
	results := make(chan result, 2)
	var started sync.WaitGroup
	for i := 1; i <= 2; i++ {
		started.Add(1)
		i := i
		go func() {
			// Stagger so waiter 1 queues before waiter 2.
			time.Sleep(time.Duration(i) * 20 * time.Millisecond)
			started.Done()
			pc, err := p.Acquire(context.Background())
			require.NoError(t, err)
			results <- result{order: i, pc: pc}
			time.Sleep(10 * time.Millisecond)
			p.Release(pc)
		}()
	}
	started.Wait()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 2, p.Waiting())

	p.Release(first)
	got := <-results
	assert.Equal(t, 1, got.order, "first queued waiter wakes first")
	<-results
}

func TestPoolAcquireCancelledSilently(t *testing.T) {
	p := newFakePool(1, 1, nil)
	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.Waiting() == 1 },
		time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.Eventually(t, func() bool { return p.Waiting() == 0 },
		time.Second, 5*time.Millisecond)

	// The pool is still healthy afterwards.
	p.Release(pc)
	again, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(again)
}

func TestPoolDiscardOpensSlotForWaiter(t *testing.T) {
	var dialed atomic.Int32
	p := newFakePool(1, 1, &dialed)

	pc, err := p.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan *pooledConn, 1)
	go func() {
		next, err := p.Acquire(context.Background())
		require.NoError(t, err)
		done <- next
	}()
	require.Eventually(t, func() bool { return p.Waiting() == 1 },
		time.Second, 5*time.Millisecond)

	p.Discard(pc, assert.AnError)
	next := <-done
	assert.NotSame(t, pc, next, "waiter gets a fresh connection")
	assert.Equal(t, int32(2), dialed.Load())
}

func TestPoolClosedAcquireFails(t *testing.T) {
	p := newFakePool(1, 1, nil)
	p.Close()
	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}
