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

// SPWriter is the single-producer fast path: a queue may have at most one
// live SPWriter at a time (enforced by NewSPWriter), which lets Push link a
// new block and publish length with plain atomic stores; the only
// compare-and-swap is the best-effort update of the queue's tail hint when
// a block fills.
type SPWriter[T any] struct {
	q      *Queue[T]
	cur    blockRef[T]
	cursor int
}

// NewSPWriter returns a single-producer writer for q. q must have been
// constructed with WithProducerMode(ProducerSingle). NewSPWriter panics if
// another SPWriter for q is already live; call Close on it first.
func (q *Queue[T]) NewSPWriter() *SPWriter[T] {
	if q.producerMode != ProducerSingle {
		panic("bcqueue: NewSPWriter requires ProducerSingle")
	}
	if !q.spWriterLive.CompareAndSwap(false, true) {
		panic("bcqueue: queue already has a live SPWriter")
	}

	ref := q.acquireTail()
	cursor := int(ref.b.len.Load())
	return &SPWriter[T]{q: q, cur: ref, cursor: cursor}
}

// Push appends v to the stream, extending the block chain if the current
// block is full. Push never blocks and never fails.
func (w *SPWriter[T]) Push(v T) {
	if w.cursor == w.cur.b.capacity {
		w.rotate()
	}

	b := w.cur.b
	b.mem[w.cursor] = v
	w.cursor++
	b.len.Store(uint32(w.cursor))
}

// rotate links a freshly allocated block after the current one and adopts
// it. Linking needs no compare-and-swap: w is the sole writer, so
// w.cur.b.next is guaranteed still nil.
func (w *SPWriter[T]) rotate() {
	next := w.q.newBlock()
	w.cur.b.next.Store(next)
	w.q.tail.CompareAndSwap(w.cur.b, next)

	// next's creation credit belongs to the link itself; acquire our own
	// reference on top of it before adopting next as our current block.
	next.acquire()
	w.cur.release()
	w.cur = blockRef[T]{b: next}
	w.cursor = 0
}

// Close releases w's reference to its current block and frees w's slot so a
// new SPWriter may be constructed. w must not be used again afterward.
func (w *SPWriter[T]) Close() {
	w.cur.release()
	w.cur = blockRef[T]{}
	w.q.spWriterLive.Store(false)
}
