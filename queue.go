// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package bcqueue

import "sync/atomic"

// Queue is a lock-free, unbounded, multi-producer/multi-consumer broadcast
// queue of values of type T. The zero Queue is not usable; construct one
// with NewQueue.
type Queue[T any] struct {
	// head is the queue's own reference to the oldest block still
	// reachable, advanced opportunistically by readers as they leave a
	// block behind (see tryAdvanceHead). It is the one reference that
	// keeps the very first block alive before any reader subscribes.
	head atomic.Pointer[block[T]]
	// tail is a best-effort, non-owning hint for "the current tail
	// block". Correctness never depends on it being current: any caller
	// that needs the real tail walks next pointers from the hint forward.
	tail atomic.Pointer[block[T]]

	blockSize    int
	producerMode ProducerMode
	onBlockFree  func()

	spWriterLive atomic.Bool
}

// NewQueue constructs an empty queue ready to accept readers and writers.
func NewQueue[T any](opts ...Option) *Queue[T] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	q := &Queue[T]{
		blockSize:    cfg.blockSize,
		producerMode: cfg.producerMode,
		onBlockFree:  cfg.onBlockFree,
	}
	b := newBlock[T](cfg.blockSize, cfg.onBlockFree)
	q.head.Store(b)
	q.tail.Store(b)
	return q
}

func (q *Queue[T]) newBlock() *block[T] {
	return newBlock[T](q.blockSize, q.onBlockFree)
}

// acquireTail returns an acquired reference to the actual current tail
// block, walking forward from the cached hint if it is stale, and
// opportunistically refreshes the hint.
func (q *Queue[T]) acquireTail() blockRef[T] {
	hint := q.tail.Load()
	b := hint
	b.acquire()
	for {
		n, ok := b.nextBlock()
		if !ok {
			break
		}
		b.release()
		b = n
	}
	if b != hint {
		q.tail.CompareAndSwap(hint, b)
	}
	return blockRef[T]{b: b}
}

// tryAdvanceHead opportunistically moves the queue's own head reference
// from "from" to its successor, releasing the queue's credit on "from".
// It is a no-op if head has already moved past "from", or if "from" has no
// successor yet (it is still the tail, nothing to advance to). Any number
// of readers may call this concurrently for the same block; the
// compare-and-swap guarantees the queue's reference is released exactly
// once.
func (q *Queue[T]) tryAdvanceHead(from *block[T]) {
	for {
		cur := q.head.Load()
		if cur != from {
			return
		}
		next := cur.next.Load()
		if next == nil {
			return
		}
		// Acquire the head's credit on next before giving up its credit on
		// cur, so the head's reference is never dropped from the chain
		// even momentarily.
		next.acquire()
		if q.head.CompareAndSwap(cur, next) {
			cur.release()
			return
		}
		next.release()
	}
}
