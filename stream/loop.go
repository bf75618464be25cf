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

package stream

import (
	"sync"
	"sync/atomic"
)

// Loop is a single-goroutine event loop. Every connection is pinned to
// one loop and all of its state mutates there; work offered from other
// goroutines is enqueued and dispatched in submission order. The queue
// is unbounded so a task submitted from the loop itself never blocks.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	closed  bool
	stopped chan struct{}
	running atomic.Bool // a task is executing on the loop goroutine
}

// NewLoop starts a loop and returns it.
func NewLoop() *Loop {
	l := &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Execute enqueues a task for the loop goroutine. Tasks submitted after
// Close are dropped.
func (l *Loop) Execute(task func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Close stops the loop after the pending tasks run.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.stopped
}

// Busy reports whether a task is currently executing. It exists for
// tests; correctness never depends on it.
func (l *Loop) Busy() bool {
	return l.running.Load()
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		closed := l.closed
		l.mu.Unlock()

		for _, task := range tasks {
			l.running.Store(true)
			task()
			l.running.Store(false)
		}
		if closed && len(tasks) == 0 {
			l.mu.Lock()
			done := len(l.tasks) == 0
			l.mu.Unlock()
			if done {
				return
			}
			continue
		}
		if len(tasks) == 0 {
			<-l.wake
		}
	}
}

// Group is a fixed set of loops handing out members round-robin, so
// connections spread across a small pool of event-loop workers.
type Group struct {
	loops []*Loop
	next  atomic.Uint32
}

// NewGroup starts n loops. n below 1 is raised to 1.
func NewGroup(n int) *Group {
	if n < 1 {
		n = 1
	}
	g := &Group{loops: make([]*Loop, n)}
	for i := range g.loops {
		g.loops[i] = NewLoop()
	}
	return g
}

// Next returns the next loop round-robin.
func (g *Group) Next() *Loop {
	n := g.next.Add(1)
	return g.loops[int(n-1)%len(g.loops)]
}

// Close stops every loop in the group.
func (g *Group) Close() {
	for _, l := range g.loops {
		l.Close()
	}
}
