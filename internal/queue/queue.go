/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package queue implements a bounded blocking FIFO of precomputed request
// byte buffers shared between the generator's worker pool (producers) and
// the event loop's main thread (the single, never-blocking consumer).
//
// Pop must never suspend, so this isn't a bare channel: a waiter counter
// lets Pop skip the wakeup when no producer is blocked, and an explicit
// condition variable gives Stop a way to wake every blocked producer at
// once.
package queue

import "sync"

// Item is one serialized request plus the type discriminator the script
// optionally tagged it with (0 when the script left it unset).
type Item struct {
	Buf  []byte
	Type int32
}

// Queue is a fixed-capacity FIFO of Items (serialized requests). Producers
// block on Push when full; Pop never blocks.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []Item
	cap     int
	waiters int
	stopped bool
}

// New creates a Queue with the given fixed capacity.
func New(capacity int) *Queue {
	q := &Queue{
		items: make([]Item, 0, capacity),
		cap:   capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push blocks while the queue is full, then appends item. It returns false
// without pushing if the queue has been stopped (either before or while
// waiting for room).
func (q *Queue) Push(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.cap && !q.stopped {
		q.waiters++
		q.cond.Wait()
		q.waiters--
	}
	if q.stopped {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal() // wake at most one waiter (a blocked Push, on Stop, or nothing)
	return true
}

// Pop removes and returns the front item if any is present. It never
// blocks: an empty queue returns (Item{}, false) immediately, since the
// event loop's main thread must have no suspension point here.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	if q.waiters > 0 {
		q.cond.Signal()
	}
	return item, true
}

// Len returns the current number of buffered items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop marks the queue stopped and wakes every blocked Push, which then
// returns false without pushing. Safe to call more than once.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	q.cond.Broadcast()
}
